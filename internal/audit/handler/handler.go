package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"vigil/internal/audit"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/httputil"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Chain is the read side of audit.Chain.
type Chain interface {
	Entries(ctx context.Context, limit int) ([]audit.Entry, error)
	Verify(ctx context.Context) (audit.Report, error)
}

type Handler struct {
	chain  Chain
	logger *slog.Logger
}

func New(chain Chain, logger *slog.Logger) *Handler {
	return &Handler{chain: chain, logger: logger}
}

// RegisterAdmin mounts the audit endpoints. Callers wrap r with the ADMIN
// role check.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/audit/entries", h.HandleEntries)
	r.Get("/admin/audit/verify", h.HandleVerify)
}

type EntriesResponse struct {
	Entries []audit.Entry `json:"entries"`
}

func (h *Handler) HandleEntries(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxLimit {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 1000"))
			return
		}
		limit = n
	}

	entries, err := h.chain.Entries(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, EntriesResponse{Entries: entries})
}

// HandleVerify returns the report with 200 for an intact chain and 409 for
// a broken one.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	report, err := h.chain.Verify(r.Context())
	switch {
	case err == nil:
		httputil.WriteJSON(w, http.StatusOK, report)
	case dErrors.HasCode(err, dErrors.CodeChainIntegrity):
		httputil.WriteJSON(w, http.StatusConflict, report)
	default:
		h.logger.ErrorContext(r.Context(), "audit verification failed", "error", err)
		httputil.WriteError(w, err)
	}
}
