package kandinsky

// Reason classifies why a generation did not produce an image.
type Reason string

const (
	ReasonInvalidPrompt Reason = "invalid_prompt"
	ReasonNotConfigured Reason = "not_configured"
	ReasonSubmitFailed  Reason = "submit_failed"
	ReasonBackendFailed Reason = "backend_failed"
	ReasonModerated     Reason = "moderated"
	ReasonNoImage       Reason = "no_image"
	ReasonTimedOut      Reason = "timed_out"
	ReasonCanceled      Reason = "canceled"
)

// GenerationError is the only error type GenerateImage returns.
// Detail carries the backend's own description for ReasonBackendFailed.
type GenerationError struct {
	Reason Reason
	Detail string
}

func (e *GenerationError) Error() string {
	switch e.Reason {
	case ReasonInvalidPrompt:
		return "an image description is required"
	case ReasonNotConfigured:
		return "image service is not initialized"
	case ReasonSubmitFailed:
		return "could not start image generation"
	case ReasonBackendFailed:
		if e.Detail == "" {
			return "generation failed: unknown error"
		}
		return "generation failed: " + e.Detail
	case ReasonModerated:
		return "the image was blocked by content moderation"
	case ReasonNoImage:
		return "the server returned no image"
	case ReasonTimedOut:
		return "generation exceeded time budget"
	case ReasonCanceled:
		return "generation was canceled"
	}
	return "image generation failed: " + string(e.Reason)
}

func fail(r Reason) *GenerationError { return &GenerationError{Reason: r} }
