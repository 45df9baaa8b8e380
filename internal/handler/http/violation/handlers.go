package violation

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"quotaguard/internal/domain/entity"
	"quotaguard/internal/handler/http/respond"
	"quotaguard/internal/observability/logging"
	violationUC "quotaguard/internal/usecase/violation"
)

// RecentHandler serves GET /admin/violations/recent.
//
// Query parameters:
//   - identifier: restrict to one identifier (optional)
//   - limit: maximum records to return (default 20, max 100)
type RecentHandler struct{ Svc *violationUC.Service }

func (h RecentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identifier := r.URL.Query().Get("identifier")
	limit := queryInt(r, "limit", 0)

	records, err := h.Svc.Recent(r.Context(), identifier, limit)
	if err != nil {
		logging.WithRequestID(r.Context(), logging.FromContext(r.Context())).
			Error("listing recent violations failed", slog.Any("error", err))
		respond.SafeErrorV2(w, http.StatusInternalServerError,
			respond.NewAppError(http.StatusInternalServerError, "failed to load recent violations", err))
		return
	}

	out := make([]DTO, 0, len(records))
	for _, v := range records {
		out = append(out, toDTO(v))
	}
	respond.JSON(w, http.StatusOK, out)
}

// TopHandler serves GET /admin/violations/top.
//
// Query parameters:
//   - days: lookback in days (default 7)
//   - limit: maximum rows to return (default 10, max 100)
type TopHandler struct{ Svc *violationUC.Service }

func (h TopHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 0)
	limit := queryInt(r, "limit", 0)

	stats, err := h.Svc.TopViolators(r.Context(), days, limit)
	if err != nil {
		logging.WithRequestID(r.Context(), logging.FromContext(r.Context())).
			Error("ranking top violators failed", slog.Any("error", err))
		respond.SafeErrorV2(w, http.StatusInternalServerError,
			respond.NewAppError(http.StatusInternalServerError, "failed to compute top violators", err))
		return
	}

	out := make([]ViolatorDTO, 0, len(stats))
	for _, s := range stats {
		out = append(out, ViolatorDTO{
			Identifier: s.Identifier,
			Kind:       s.Kind.String(),
			Count:      s.Count,
			LastSeen:   s.LastSeen,
		})
	}
	respond.JSON(w, http.StatusOK, out)
}

// StatsHandler serves GET /admin/violations/stats.
//
// Query parameters:
//   - hours: lookback in hours (default 24)
//   - type: restrict to one violation type (ip_rate, user_rate, quota)
type StatsHandler struct{ Svc *violationUC.Service }

func (h StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 0)

	var vtype entity.ViolationType
	if raw := r.URL.Query().Get("type"); raw != "" {
		vtype = entity.ViolationType(raw)
		if !vtype.IsValid() {
			respond.SafeError(w, http.StatusBadRequest, errors.New("invalid violation type"))
			return
		}
	}

	stats, err := h.Svc.CountSince(r.Context(), hours, vtype)
	if err != nil {
		logging.WithRequestID(r.Context(), logging.FromContext(r.Context())).
			Error("counting violations failed", slog.Any("error", err))
		respond.SafeErrorV2(w, http.StatusInternalServerError,
			respond.NewAppError(http.StatusInternalServerError, "failed to count violations", err))
		return
	}

	respond.JSON(w, http.StatusOK, StatsDTO{
		Since: stats.Since,
		Type:  string(stats.Type),
		Count: stats.Count,
	})
}

// Register registers the admin violation endpoints with the given mux.
// Callers are expected to wrap the mux with authentication and an
// admin-role gate; the handlers themselves do not check roles.
func Register(mux *http.ServeMux, svc *violationUC.Service) {
	mux.Handle("GET /admin/violations/recent", RecentHandler{svc})
	mux.Handle("GET /admin/violations/top", TopHandler{svc})
	mux.Handle("GET /admin/violations/stats", StatsHandler{svc})
}

// queryInt parses an integer query parameter, returning fallback for
// missing or malformed values.
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
