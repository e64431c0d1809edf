package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"vigil/internal/risk"
	"vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/httputil"
	"vigil/pkg/requestcontext"
)

// Service is the scan and override surface the handler drives.
type Service interface {
	Scan(ctx context.Context, content string, scanContext risk.ScanContext) (*risk.ScanResult, error)
	ScanSections(ctx context.Context, sections []risk.Section, scanContext risk.ScanContext) (*risk.ScanResult, error)
	GetScanResult(ctx context.Context, id domain.ScanID) (*risk.ScanResult, error)
	RequestOverride(ctx context.Context, id domain.ScanID, justification string, approverRole domain.Role) (*risk.OverrideResult, error)
	ActiveOverride(ctx context.Context, id domain.OverrideID) (*risk.Override, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/scans", h.HandleScan)
	r.Get("/scans/{scanID}", h.HandleGetScan)
	r.Post("/scans/{scanID}/override", h.HandleRequestOverride)
	r.Get("/overrides/{overrideID}", h.HandleGetOverride)
}

// ScanRequest carries either a single content string or named sections.
type ScanRequest struct {
	Content  string         `json:"content"`
	Sections []risk.Section `json:"sections"`
	Context  string         `json:"context"`

	scanContext risk.ScanContext
}

func (r *ScanRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeValidation, "request is required")
	}
	c, ok := risk.ParseScanContext(r.Context)
	if !ok {
		return dErrors.New(dErrors.CodeValidation, "context must be one of upload, export, other")
	}
	r.scanContext = c
	if r.Content != "" && len(r.Sections) > 0 {
		return dErrors.New(dErrors.CodeValidation, "provide content or sections, not both")
	}
	if r.Content == "" && len(r.Sections) == 0 {
		return dErrors.New(dErrors.CodeValidation, "content is required")
	}
	return nil
}

func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ScanRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	var (
		res *risk.ScanResult
		err error
	)
	if len(req.Sections) > 0 {
		res, err = h.service.ScanSections(ctx, req.Sections, req.scanContext)
	} else {
		res, err = h.service.Scan(ctx, req.Content, req.scanContext)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "phi scan failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) HandleGetScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseScanID(chi.URLParam(r, "scanID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.service.GetScanResult(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// OverrideRequest is the body of POST /scans/{scanID}/override. The approver
// role comes from the caller's token, never from the body.
type OverrideRequest struct {
	Justification string `json:"justification"`
}

func (r *OverrideRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeValidation, "request is required")
	}
	r.Justification = strings.TrimSpace(r.Justification)
	return nil
}

// OverrideRejection is written when an override is refused.
type OverrideRejection struct {
	Approved bool `json:"approved"`
	httputil.ErrorResponse
}

func (h *Handler) HandleRequestOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseScanID(chi.URLParam(r, "scanID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[OverrideRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.RequestOverride(ctx, id, req.Justification, requestcontext.Role(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "phi override rejected",
			"request_id", requestID,
			"scan_id", id,
			"error", err,
		)
		writeRejection(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) HandleGetOverride(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseOverrideID(chi.URLParam(r, "overrideID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	o, err := h.service.ActiveOverride(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func writeRejection(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := httputil.StatusFor(code)
	resp := OverrideRejection{ErrorResponse: httputil.ErrorResponse{Error: string(code)}}
	if status != http.StatusInternalServerError {
		resp.ErrorDescription = err.Error()
	}
	httputil.WriteJSON(w, status, resp)
}
