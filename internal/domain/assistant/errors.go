package assistant

import "fmt"

// Kind classifies orchestration failures.
type Kind string

const (
	KindAuth              Kind = "auth"
	KindProvider          Kind = "provider"
	KindSearchUnavailable Kind = "search_unavailable"
	KindImageGeneration   Kind = "image_generation"
	KindValidation        Kind = "validation"
)

// Error is a classified failure. Reason is the user-facing text; Err, when
// present, is the underlying cause and is only logged.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrEmptyMessage is returned for a blank user message.
var ErrEmptyMessage = &Error{Kind: KindValidation, Reason: "message must not be empty"}

// User-facing texts.
const (
	msgNotConfigured  = "Error: %s API is not configured. Check the API key."
	msgAuthFailed     = "%s authorization failed. Check the API key."
	msgSearchFailed   = "Sorry, couldn't get current information from the internet."
	msgProviderStatus = "%s API error: %d"
	msgProviderEmpty  = "Could not get a response from %s."
	msgProviderFailed = "An error occurred while generating the response. Please try again."
	msgImageFailed    = "Could not create image: %s"
	msgImageDone      = "Image \"%s\" generated successfully"
)
