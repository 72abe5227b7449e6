package relay

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// readUpload streams the multipart body and returns the first file part named
// "file". It stops reading as soon as that part exceeds limit. Plain form
// fields, including a non-file field named "file", are drained and ignored;
// only the audio counts against limit.
func readUpload(r *http.Request, limit int64) (Audio, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return Audio{}, ErrNoAudio
	}

	var (
		audio Audio
		found bool
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Audio{}, fmt.Errorf("reading multipart body: %w", err)
		}

		if found || part.FormName() != "file" || !isFilePart(part.Header.Get("Content-Disposition")) {
			_, err = io.Copy(io.Discard, part)
			part.Close()
			if err != nil {
				return Audio{}, fmt.Errorf("reading multipart body: %w", err)
			}
			continue
		}

		data, err := io.ReadAll(io.LimitReader(part, limit+1))
		part.Close()
		if err != nil {
			return Audio{}, fmt.Errorf("reading multipart body: %w", err)
		}
		if int64(len(data)) > limit {
			return Audio{}, ErrPayloadTooLarge
		}

		audio = Audio{
			Data:     data,
			Filename: part.FileName(),
			MIMEType: part.Header.Get("Content-Type"),
		}
		found = true
	}

	if !found || len(audio.Data) == 0 {
		return Audio{}, ErrNoAudio
	}
	if audio.Filename == "" {
		audio.Filename = defaultFilename
	}
	if audio.MIMEType == "" {
		audio.MIMEType = defaultMIMEType
	}
	return audio, nil
}

// isFilePart reports whether a Content-Disposition header carries a filename
// parameter, even an empty one.
func isFilePart(disposition string) bool {
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return false
	}
	_, ok := params["filename"]
	return ok
}
