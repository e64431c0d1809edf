package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"vigil/internal/mode"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/httputil"
	"vigil/pkg/requestcontext"
)

// Controller is the subset of mode.Controller the handler uses.
type Controller interface {
	Current() mode.State
	Switch(ctx context.Context, to mode.Mode) (mode.State, error)
	SetNoNetwork(ctx context.Context, engaged bool) (mode.State, error)
}

type Handler struct {
	controller Controller
	logger     *slog.Logger
}

func New(controller Controller, logger *slog.Logger) *Handler {
	return &Handler{controller: controller, logger: logger}
}

// Register mounts the read-only mode endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/mode", h.HandleGetMode)
	r.Get("/mode/capabilities", h.HandleGetCapabilities)
}

// RegisterAdmin mounts the mode-changing endpoints. Callers wrap r with the
// ADMIN role check.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/mode", h.HandleSwitch)
	r.Post("/admin/mode/network", h.HandleSetNoNetwork)
}

func (h *Handler) HandleGetMode(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.controller.Current())
}

func (h *Handler) HandleGetCapabilities(w http.ResponseWriter, r *http.Request) {
	st := h.controller.Current()
	httputil.WriteJSON(w, http.StatusOK, st.Capabilities)
}

// SwitchRequest is the body of POST /admin/mode.
type SwitchRequest struct {
	Mode string `json:"mode"`

	parsed mode.Mode
}

func (r *SwitchRequest) Validate() error {
	if r == nil || strings.TrimSpace(r.Mode) == "" {
		return dErrors.New(dErrors.CodeValidation, "mode is required")
	}
	m, ok := mode.ParseMode(r.Mode)
	if !ok {
		return dErrors.New(dErrors.CodeValidation, "mode must be one of STANDBY, DEMO, LIVE")
	}
	r.parsed = m
	return nil
}

func (h *Handler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SwitchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	st, err := h.controller.Switch(ctx, req.parsed)
	if err != nil {
		h.logger.WarnContext(ctx, "mode switch rejected",
			"request_id", requestID,
			"to", req.parsed,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

// NetworkRequest is the body of POST /admin/mode/network.
type NetworkRequest struct {
	NoNetwork *bool `json:"no_network"`
}

func (r *NetworkRequest) Validate() error {
	if r == nil || r.NoNetwork == nil {
		return dErrors.New(dErrors.CodeValidation, "no_network is required")
	}
	return nil
}

func (h *Handler) HandleSetNoNetwork(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[NetworkRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	st, err := h.controller.SetNoNetwork(ctx, *req.NoNetwork)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}
