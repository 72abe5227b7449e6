package relay

import (
	"encoding/json"
	"net/http"
	"strconv"
)

type (
	transcribeResponse struct {
		Transcript *string `json:"transcript"`
		Summary    *string `json:"summary"`
	}

	errorResponse struct {
		Error string `json:"error"`
	}
)

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"` + errUnknown.Error() + `"}`)
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "application/json; charset=utf-8")
	hdr.Set("Content-Length", strconv.Itoa(len(body)))
	hdr.Set("Access-Control-Allow-Origin", h.allowOrigin)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (h *Handler) writeText(w http.ResponseWriter, status int, msg string) {
	hdr := w.Header()
	hdr.Set("Content-Type", "text/plain; charset=utf-8")
	hdr.Set("Content-Length", strconv.Itoa(len(msg)))
	hdr.Set("Access-Control-Allow-Origin", h.allowOrigin)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}

// nullable maps "" to JSON null.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
