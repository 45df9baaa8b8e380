package http

import (
	"errors"
	"net/http"

	"quotaguard/internal/handler/http/respond"
)

// Input caps for the enforcement API. The surface is small: JWT-bearing
// GETs plus admin analytics queries, so the limits are tight.
const (
	maxAuthorizationBytes = 8 << 10 // JWTs with org claims stay well under 2KB
	maxPathBytes          = 2 << 10
	maxQueryBytes         = 4 << 10
	maxBodyBytes          = 1 << 20 // no endpoint reads a meaningful body
)

// InputValidation returns middleware that rejects oversized request inputs
// before any limiter or quota work happens. Oversized authorization
// headers, paths, and query strings get an immediate 4xx; bodies are
// capped with MaxBytesReader.
func InputValidation() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(r.Header.Get("Authorization")) > maxAuthorizationBytes {
				respond.Error(w, http.StatusBadRequest, errors.New("authorization header too large"))
				return
			}
			if len(r.URL.Path) > maxPathBytes {
				respond.Error(w, http.StatusRequestURITooLong, errors.New("request path too long"))
				return
			}
			if len(r.URL.RawQuery) > maxQueryBytes {
				respond.Error(w, http.StatusRequestURITooLong, errors.New("query string too long"))
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
			next.ServeHTTP(w, r)
		})
	}
}
