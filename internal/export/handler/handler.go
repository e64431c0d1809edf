package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vigil/internal/export"
	"vigil/internal/export/service"
	"vigil/internal/risk"
	"vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/httputil"
	pstrings "vigil/pkg/platform/strings"
	"vigil/pkg/requestcontext"
)

// Service is the approval workflow surface the handler drives.
type Service interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*service.SubmitResult, error)
	Get(ctx context.Context, id domain.ExportID) (*export.Request, error)
	List(ctx context.Context, statuses ...export.Status) ([]*export.Request, error)
	Resolve(ctx context.Context, id domain.ExportID, approverRole domain.Role, decision export.Decision, justification string) (*export.Request, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/exports", h.HandleSubmit)
	r.Get("/exports", h.HandleList)
	r.Get("/exports/{exportID}", h.HandleGet)
	r.Post("/exports/{exportID}/resolve", h.HandleResolve)
}

// SubmitRequest is the body of POST /exports.
type SubmitRequest struct {
	BundleType string         `json:"bundle_type"`
	Content    string         `json:"content"`
	Sections   []risk.Section `json:"sections"`

	bundle export.BundleType
}

func (r *SubmitRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeValidation, "request is required")
	}
	b, err := export.ParseBundleType(r.BundleType)
	if err != nil {
		return err
	}
	r.bundle = b
	if r.Content != "" && len(r.Sections) > 0 {
		return dErrors.New(dErrors.CodeValidation, "provide content or sections, not both")
	}
	if r.Content == "" && len(r.Sections) == 0 {
		return dErrors.New(dErrors.CodeValidation, "content is required")
	}
	return nil
}

func (r *SubmitRequest) sections() []risk.Section {
	if len(r.Sections) > 0 {
		return r.Sections
	}
	return []risk.Section{{Name: risk.DefaultSection, Content: r.Content}}
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Submit(ctx, service.SubmitRequest{
		BundleType: req.bundle,
		Sections:   req.sections(),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "export submission failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseExportID(chi.URLParam(r, "exportID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

// ListResponse wraps GET /exports results.
type ListResponse struct {
	Requests []*export.Request `json:"requests"`
}

// HandleList serves GET /exports. status may repeat or hold a comma list.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	var statuses []export.Status
	for _, raw := range pstrings.SplitList(r.URL.Query()["status"]...) {
		st, err := export.ParseStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		statuses = append(statuses, st)
	}
	out, err := h.service.List(r.Context(), statuses...)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Requests: out})
}

// ResolveRequest is the body of POST /exports/{exportID}/resolve.
type ResolveRequest struct {
	Decision      string `json:"decision"`
	Justification string `json:"justification"`

	decision export.Decision
}

func (r *ResolveRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeValidation, "request is required")
	}
	d, err := export.ParseDecision(r.Decision)
	if err != nil {
		return err
	}
	r.decision = d
	return nil
}

func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseExportID(chi.URLParam(r, "exportID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ResolveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	out, err := h.service.Resolve(ctx, id, requestcontext.Role(ctx), req.decision, req.Justification)
	if err != nil {
		h.logger.WarnContext(ctx, "export resolution rejected",
			"request_id", requestID,
			"export_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
