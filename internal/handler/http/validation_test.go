package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func inputValidationHandler(reached *bool) http.Handler {
	return InputValidation()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*reached = true
		w.WriteHeader(http.StatusOK)
	}))
}

func TestInputValidation_PassesNormalRequest(t *testing.T) {
	reached := false
	handler := inputValidationHandler(&reached)

	req := httptest.NewRequest(http.MethodGet, "/api/quota?hours=24", nil)
	req.Header.Set("Authorization", "Bearer "+strings.Repeat("t", 900))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !reached {
		t.Fatal("well-formed request must reach the handler")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
}

func TestInputValidation_RejectsOversizedInputs(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*http.Request)
		wantStatus int
		wantError  string
	}{
		{
			name: "authorization header over cap",
			mutate: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+strings.Repeat("x", maxAuthorizationBytes))
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "authorization header too large",
		},
		{
			name: "path over cap",
			mutate: func(r *http.Request) {
				r.URL.Path = "/api/" + strings.Repeat("a", maxPathBytes)
			},
			wantStatus: http.StatusRequestURITooLong,
			wantError:  "request path too long",
		},
		{
			name: "query string over cap",
			mutate: func(r *http.Request) {
				r.URL.RawQuery = "identifier=" + strings.Repeat("b", maxQueryBytes)
			},
			wantStatus: http.StatusRequestURITooLong,
			wantError:  "query string too long",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			handler := inputValidationHandler(&reached)

			req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
			tt.mutate(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if reached {
				t.Fatal("oversized request must not reach the handler")
			}
			if rec.Code != tt.wantStatus {
				t.Fatalf("status=%d, want %d", rec.Code, tt.wantStatus)
			}

			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] != tt.wantError {
				t.Fatalf("error=%q, want %q", body["error"], tt.wantError)
			}
		})
	}
}

func TestInputValidation_CapsBody(t *testing.T) {
	var readErr error
	handler := InputValidation()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))

	oversized := strings.NewReader(strings.Repeat("z", maxBodyBytes+1))
	req := httptest.NewRequest(http.MethodPost, "/api/items", oversized)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if readErr == nil {
		t.Fatal("reading a body over the cap must fail")
	}

	var maxErr *http.MaxBytesError
	if !errors.As(readErr, &maxErr) {
		t.Fatalf("err=%v, want MaxBytesError", readErr)
	}
}
