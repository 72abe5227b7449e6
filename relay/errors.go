package relay

import "errors"

var (
	// ErrNotConfigured is answered when no Transcriber is available.
	ErrNotConfigured = errors.New("transcription credential is not configured")

	// ErrNoAudio means the request carried no usable "file" part.
	ErrNoAudio = errors.New("no audio file was sent")

	// ErrPayloadTooLarge means the file exceeded the upload limit. No provider
	// is called for such a request.
	ErrPayloadTooLarge = errors.New("audio file exceeds the upload limit")

	// ErrExternalService wraps failures of the transcription or summarization provider.
	ErrExternalService = errors.New("external service failed")

	// errUnknown is the message used when a failure carries no usable text.
	errUnknown = errors.New("unknown transcription error")
)
