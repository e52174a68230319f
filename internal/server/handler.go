package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Afrawles/weeklyreport/internal/apierror"
	"github.com/Afrawles/weeklyreport/internal/report"
	"github.com/Afrawles/weeklyreport/internal/weeklyreport"
)

type handler struct {
	reporter Reporter
	config   Config
}

func newHandler(reporter Reporter, config Config) *handler {
	return &handler{reporter: reporter, config: config}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) ReportHTML(w http.ResponseWriter, r *http.Request) {
	merged, ok := h.build(w, r)
	if !ok {
		return
	}

	html, err := report.RenderHTML(h.config.Template, []report.Result{merged}, h.generatedAt())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to render HTML report")
		writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}

func (h *handler) ReportText(w http.ResponseWriter, r *http.Request) {
	merged, ok := h.build(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, report.RenderText([]report.Result{merged}, h.generatedAt()))
}

func (h *handler) ReportJSON(w http.ResponseWriter, r *http.Request) {
	merged, ok := h.build(w, r)
	if !ok {
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, report.NewDocument(merged, h.generatedAt()))
}

// build resolves the requested period from ?period=, ?start= and ?end= and
// builds the report, writing an error response when either step fails.
func (h *handler) build(w http.ResponseWriter, r *http.Request) (report.MergedReport, bool) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	query := r.URL.Query()

	period := h.reporter.DefaultPeriod()
	if name := query.Get("period"); name != "" {
		p, err := weeklyreport.NamedPeriod(name, h.config.Now(), h.config.Location)
		if err != nil {
			writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return report.MergedReport{}, false
		}
		period = p
	}

	period, err := weeklyreport.ParsePeriod(query.Get("start"), query.Get("end"), period, h.config.Location)
	if err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return report.MergedReport{}, false
	}

	merged, err := h.reporter.Build(ctx, period)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build report")
		status := http.StatusBadGateway
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeJSON(ctx, w, status, errorResponse{Error: apierror.Message(err)})
		return report.MergedReport{}, false
	}

	return merged, true
}

func (h *handler) generatedAt() time.Time {
	return h.config.Now().In(h.config.Location)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to encode response")
	}
}
