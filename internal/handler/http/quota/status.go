// Package quota exposes the caller-facing quota status endpoint.
package quota

import (
	"errors"
	"net/http"
	"time"

	"quotaguard/internal/handler/http/auth"
	"quotaguard/internal/handler/http/respond"
	quotaUC "quotaguard/internal/usecase/quota"
)

// StatusDTO is the JSON shape of a quota status report.
type StatusDTO struct {
	OrganizationID string    `json:"organization_id,omitempty"`
	Plan           string    `json:"plan,omitempty"`
	Used           int64     `json:"used"`
	Limit          int64     `json:"limit"`
	Remaining      int64     `json:"remaining"`
	ResetsAt       time.Time `json:"resets_at"`
	Unlimited      bool      `json:"unlimited"`
}

// StatusHandler reports the caller organization's quota standing for the
// current month without consuming any usage.
type StatusHandler struct{ Svc *quotaUC.Service }

func (h StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	if claims == nil {
		respond.SafeError(w, http.StatusUnauthorized, errors.New("unauthorized: missing claims"))
		return
	}

	status, err := h.Svc.Status(r.Context(), claims.OrganizationID, claims.Plan)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	respond.JSON(w, http.StatusOK, StatusDTO{
		OrganizationID: claims.OrganizationID,
		Plan:           claims.Plan,
		Used:           status.Used,
		Limit:          status.Limit,
		Remaining:      status.Remaining(),
		ResetsAt:       status.ResetsAt,
		Unlimited:      status.Unlimited,
	})
}

// Register registers the quota status endpoint with the given mux.
func Register(mux *http.ServeMux, svc *quotaUC.Service) {
	mux.Handle("GET /api/quota", StatusHandler{svc})
}
