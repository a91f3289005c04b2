package cli

// SilentError wraps an error whose message the command already printed.
// main prints every other error to stderr.
type SilentError struct {
	Err error
}

// NewSilentError marks err as already reported to the user.
func NewSilentError(err error) *SilentError {
	return &SilentError{Err: err}
}

func (e *SilentError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *SilentError) Unwrap() error {
	return e.Err
}
