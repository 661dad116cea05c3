package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"strings"
)

const maxFormBytes = 64 << 10

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

// requestForm carries the fields accepted by the form endpoints
type requestForm struct {
	URL     string `json:"url"`
	Quality string `json:"quality"`
	Type    string `json:"type"`
}

// decodeForm reads url, quality and type from a JSON body or from form values
func decodeForm(w http.ResponseWriter, r *http.Request) (requestForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var form requestForm
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			return requestForm{}, fmt.Errorf("invalid JSON body: %w", err)
		}
		form.URL = strings.TrimSpace(form.URL)
		return form, nil
	}

	if err := r.ParseForm(); err != nil {
		return requestForm{}, fmt.Errorf("invalid form body: %w", err)
	}
	return requestForm{
		URL:     strings.TrimSpace(r.PostFormValue("url")),
		Quality: r.PostFormValue("quality"),
		Type:    r.PostFormValue("type"),
	}, nil
}

// clientIP returns the caller's address after the RealIP middleware has applied
// X-Real-IP / X-Forwarded-For
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
