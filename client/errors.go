package client

import (
	"errors"
	"strconv"
)

var (
	// ErrConfiguration means the backend base URL is missing. No request is made.
	ErrConfiguration = errors.New("no backend URL is configured")

	// ErrTranscriptionRequest is matched by every *RequestError.
	ErrTranscriptionRequest = errors.New("transcription request failed")

	// ErrNoTranscript means the relay answered successfully without usable text.
	ErrNoTranscript = errors.New("backend returned no transcript")
)

// RequestError is a non-success answer from the relay, or an explicit error
// field in a success answer.
type RequestError struct {
	// StatusCode is 0 when the relay reported the error inside a success answer.
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return e.Message + " (HTTP " + strconv.Itoa(e.StatusCode) + ")"
}

func (e *RequestError) Is(target error) bool {
	return target == ErrTranscriptionRequest
}

// Message turns any error from Transcribe into text fit for display.
func Message(err error) string {
	var re *RequestError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &re):
		return re.Message
	case errors.Is(err, ErrConfiguration):
		return ErrConfiguration.Error()
	case errors.Is(err, ErrNoTranscript):
		return ErrNoTranscript.Error()
	default:
		return err.Error()
	}
}
