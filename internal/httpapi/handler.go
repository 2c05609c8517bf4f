package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/automatistasidl/id-coletivo/internal/attendance"
	"github.com/automatistasidl/id-coletivo/internal/export"
	"github.com/automatistasidl/id-coletivo/internal/platform/apierrors"
	"github.com/automatistasidl/id-coletivo/internal/platform/logging"
	"github.com/automatistasidl/id-coletivo/internal/session"
)

const (
	serviceTimeout  = 10 * time.Second
	maxPayloadBytes = 64 << 10 // 64KB
)

// Dependencies are the components the handlers call into.
type Dependencies struct {
	Service  *attendance.Service
	Sessions *session.Manager
	// Exporter may be nil; POST /v1/exports then answers 501.
	Exporter *export.Service
	Logger   *slog.Logger
}

type handler struct {
	service  *attendance.Service
	sessions *session.Manager
	exporter *export.Service
	logger   *slog.Logger
}

type badgeRules struct {
	MinLength int `json:"min_length"`
	MaxLength int `json:"max_length"`
}

type formResponse struct {
	Sectors  []string            `json:"sectors"`
	Other    string              `json:"other_option"`
	Tiers    []string            `json:"tiers"`
	Badge    badgeRules          `json:"badge"`
	Session  *attendance.Session `json:"session"`
	Degraded bool                `json:"degraded,omitempty"`
}

type sessionRequest struct {
	LeaderName string `json:"leader_name"`
}

type sectorsResponse struct {
	Sectors  []string `json:"sectors"`
	Degraded bool     `json:"degraded,omitempty"`
}

type addSectorRequest struct {
	Name string `json:"name"`
}

type addSectorResponse struct {
	Name    string `json:"name"`
	Outcome string `json:"outcome"`
}

// RegisterRoutes mounts the attendance API under /v1.
func RegisterRoutes(r chi.Router, deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{
		service:  deps.Service,
		sessions: deps.Sessions,
		exporter: deps.Exporter,
		logger:   logger,
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(deps.Sessions.Middleware)

		r.Get("/form", h.getForm)
		r.Get("/session", h.getSession)
		r.Put("/session", h.putSession)
		r.Get("/records", h.listRecords)
		r.Post("/records", h.submitRecord)
		r.Post("/refresh", h.refresh)
		r.Get("/sectors", h.listSectors)
		r.Post("/sectors", h.addSector)
		r.Post("/exports", h.createExport)
	})
}

func (h *handler) getForm(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	sectors, degraded := h.service.Sectors(ctx)
	policy := h.service.Policy()
	writeJSON(w, http.StatusOK, formResponse{
		Sectors:  sectors,
		Other:    attendance.SectorOther,
		Tiers:    policy.Tiers,
		Badge:    badgeRules{MinLength: policy.BadgeMinLength, MaxLength: policy.BadgeMaxLength},
		Session:  session.FromContext(r.Context()),
		Degraded: degraded,
	})
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, session.FromContext(r.Context()))
}

func (h *handler) putSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.Write(w, r, apierrors.CodeBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.LeaderName) == "" {
		apierrors.Write(w, r, apierrors.CodeValidation, "o nome do líder é obrigatório")
		return
	}

	sess := session.FromContext(r.Context())
	sess.SetLeader(req.LeaderName)
	if !h.saveSession(w, r, sess) {
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *handler) submitRecord(w http.ResponseWriter, r *http.Request) {
	var input attendance.SubmitInput
	if err := decodeJSON(w, r, &input); err != nil {
		apierrors.Write(w, r, apierrors.CodeBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	sess := session.FromContext(r.Context())
	result, err := h.service.Submit(ctx, sess, input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !h.saveSession(w, r, sess) {
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *handler) listRecords(w http.ResponseWriter, r *http.Request) {
	filter := attendance.Filter{
		Sector: strings.TrimSpace(r.URL.Query().Get("sector")),
		Leader: strings.TrimSpace(r.URL.Query().Get("leader")),
		Date:   strings.TrimSpace(r.URL.Query().Get("date")),
	}
	if filter.Date != "" {
		if _, err := time.Parse(attendance.DateLayout, filter.Date); err != nil {
			apierrors.Write(w, r, apierrors.CodeBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	writeJSON(w, http.StatusOK, h.service.Report(ctx, filter))
}

func (h *handler) refresh(w http.ResponseWriter, _ *http.Request) {
	h.service.Refresh()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listSectors(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	sectors, degraded := h.service.Sectors(ctx)
	writeJSON(w, http.StatusOK, sectorsResponse{Sectors: sectors, Degraded: degraded})
}

func (h *handler) addSector(w http.ResponseWriter, r *http.Request) {
	var req addSectorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.Write(w, r, apierrors.CodeBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	name, outcome, err := h.service.AddSector(ctx, req.Name)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	status := http.StatusCreated
	if outcome == attendance.SectorExists {
		status = http.StatusOK
	}
	writeJSON(w, status, addSectorResponse{Name: name, Outcome: outcome.String()})
}

func (h *handler) createExport(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		apierrors.Write(w, r, apierrors.CodeNotConfigured, "exports are not configured")
		return
	}
	var filter attendance.Filter
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &filter); err != nil {
			apierrors.Write(w, r, apierrors.CodeBadRequest, err.Error())
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	result, err := h.exporter.Export(ctx, filter)
	if err != nil {
		logging.FromRequest(ctx, h.logger).ErrorContext(ctx, "export failed", "error", err)
		apierrors.Write(w, r, apierrors.CodeStoreWrite, "failed to export records")
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *handler) saveSession(w http.ResponseWriter, r *http.Request, sess *attendance.Session) bool {
	if err := h.sessions.Save(w, sess); err != nil {
		logging.FromRequest(r.Context(), h.logger).ErrorContext(r.Context(), "session save failed", "error", err)
		apierrors.Write(w, r, apierrors.CodeInternal, "failed to save session")
		return false
	}
	return true
}

func (h *handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *attendance.ValidationError
	switch {
	case errors.As(err, &verr):
		apierrors.Write(w, r, apierrors.CodeValidation, "a submissão contém erros", verr.Problems...)
	case errors.Is(err, attendance.ErrStoreConnection):
		var details []string
		if hint := attendance.Hint(err); hint != "" {
			details = append(details, hint)
		}
		apierrors.Write(w, r, apierrors.CodeStoreUnavailable, "backing store unavailable", details...)
	case errors.Is(err, attendance.ErrStoreWrite):
		apierrors.Write(w, r, apierrors.CodeStoreWrite, "failed to save the record")
	default:
		logging.FromRequest(r.Context(), h.logger).ErrorContext(r.Context(), "unexpected service error", "error", err)
		apierrors.Write(w, r, apierrors.CodeInternal, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON payload: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
