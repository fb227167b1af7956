package assistant

// Reply is the result of one orchestration: a TextReply or an ImageReply.
type Reply interface {
	// Message is the text shown to the user.
	Message() string
	isReply()
}

// TextReply is a plain answer. Failure is set when the text reports an error
// instead of a model answer.
type TextReply struct {
	Text    string
	Failure *Error
}

// ImageReply carries a generated image.
type ImageReply struct {
	Text    string
	Image   []byte
	Prompt  string
	Service string
}

func (r TextReply) Message() string  { return r.Text }
func (r ImageReply) Message() string { return r.Text }

func (TextReply) isReply()  {}
func (ImageReply) isReply() {}
