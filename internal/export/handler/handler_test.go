package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/export"
	"vigil/internal/export/service"
	"vigil/internal/mode"
	"vigil/internal/risk"
	"vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/requestcontext"
)

type stubService struct {
	submitted service.SubmitRequest
	statuses  []export.Status
	role      domain.Role
	decision  export.Decision
	err       error
}

func (s *stubService) Submit(_ context.Context, req service.SubmitRequest) (*service.SubmitResult, error) {
	s.submitted = req
	if s.err != nil {
		return nil, s.err
	}
	r := export.NewRequest("researcher-1", domain.RoleResearcher, req.BundleType, nil, false, time.Now())
	return &service.SubmitResult{Request: r, Scan: &risk.ScanResult{RiskLevel: risk.LevelNone}}, nil
}

func (s *stubService) Get(_ context.Context, id domain.ExportID) (*export.Request, error) {
	if s.err != nil {
		return nil, s.err
	}
	r := export.NewRequest("researcher-1", domain.RoleResearcher, export.BundleDataset, nil, false, time.Now())
	r.ID = id
	return r, nil
}

func (s *stubService) List(_ context.Context, statuses ...export.Status) ([]*export.Request, error) {
	s.statuses = statuses
	return []*export.Request{}, s.err
}

func (s *stubService) Resolve(_ context.Context, id domain.ExportID, role domain.Role, d export.Decision, _ string) (*export.Request, error) {
	s.role, s.decision = role, d
	if s.err != nil {
		return nil, s.err
	}
	r := export.NewRequest("researcher-1", domain.RoleResearcher, export.BundleDataset, nil, false, time.Now())
	return r.Resolved(d, "steward-1", "", time.Now()), nil
}

func serve(svc Service, method, path, body string) *httptest.ResponseRecorder {
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := requestcontext.WithPrincipal(req.Context(), "steward-1", domain.RoleSteward)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.Register(r)

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, rd))
	return w
}

func TestHandleSubmit(t *testing.T) {
	t.Run("content becomes a single section", func(t *testing.T) {
		svc := &stubService{}
		w := serve(svc, http.MethodPost, "/exports", `{"bundle_type":"manuscript","content":"hello"}`)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, export.BundleManuscript, svc.submitted.BundleType)
		require.Len(t, svc.submitted.Sections, 1)
		assert.Equal(t, risk.DefaultSection, svc.submitted.Sections[0].Name)
	})

	t.Run("mode block maps to 403 with reason", func(t *testing.T) {
		svc := &stubService{err: mode.Blocked(mode.ReasonModeRestricted, "export.submit")}
		w := serve(svc, http.MethodPost, "/exports", `{"bundle_type":"dataset","content":"x"}`)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), `"reason":"mode_restricted"`)
	})

	t.Run("invalid bodies", func(t *testing.T) {
		for _, body := range []string{
			`{"content":"x"}`,
			`{"bundle_type":"dataset"}`,
			`{"bundle_type":"dataset","content":"x","sections":[{"name":"a","content":"b"}]}`,
		} {
			w := serve(&stubService{}, http.MethodPost, "/exports", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
		}
	})
}

func TestHandleList(t *testing.T) {
	svc := &stubService{}
	w := serve(svc, http.MethodGet, "/exports?status=pending&status=PHI_BLOCKED,pending", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []export.Status{export.StatusPending, export.StatusPHIBlocked}, svc.statuses)

	var body ListResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.NotNil(t, body.Requests)

	w = serve(svc, http.MethodGet, "/exports?status=OPEN", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGet(t *testing.T) {
	id := domain.NewExportID()
	w := serve(&stubService{}, http.MethodGet, "/exports/"+id.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	var body export.Request
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, id, body.ID)

	w = serve(&stubService{err: dErrors.New(dErrors.CodeNotFound, "export request not found")},
		http.MethodGet, "/exports/"+id.String(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleResolve(t *testing.T) {
	path := "/exports/" + domain.NewExportID().String() + "/resolve"

	t.Run("role comes from the token", func(t *testing.T) {
		svc := &stubService{}
		w := serve(svc, http.MethodPost, path, `{"decision":"approve"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, domain.RoleSteward, svc.role)
		assert.Equal(t, export.DecisionApprove, svc.decision)
	})

	t.Run("role in the body is rejected", func(t *testing.T) {
		w := serve(&stubService{}, http.MethodPost, path, `{"decision":"approve","role":"ADMIN"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("already resolved maps to 409", func(t *testing.T) {
		svc := &stubService{err: export.AlreadyResolvedError(export.StatusApproved)}
		w := serve(svc, http.MethodPost, path, `{"decision":"deny"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "already approved")
	})

	t.Run("bad decision", func(t *testing.T) {
		w := serve(&stubService{}, http.MethodPost, path, `{"decision":"later"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
