package api

import (
	"NetDeviation/internal/deviation"
	"NetDeviation/internal/model"
	"NetDeviation/internal/report"
	"NetDeviation/internal/snapshot"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// APIHandler serves the persisted run artifacts to report assemblers.
type APIHandler struct {
	rootPath string
	gatherer prometheus.Gatherer
	logger   log.FieldLogger
}

// NewRouter creates the HTTP routes over the artifacts stored under rootPath.
func NewRouter(rootPath string, gatherer prometheus.Gatherer, logger log.FieldLogger) *mux.Router {
	h := &APIHandler{rootPath: rootPath, gatherer: gatherer, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.healthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/summaries/{kind}/latest", h.latestSummaryHandler).Methods("GET")
	v1.HandleFunc("/attacks/latest", h.latestAttackLogHandler).Methods("GET")
	v1.HandleFunc("/deviation/latest", h.latestDeviationHandler).Methods("GET")
	v1.HandleFunc("/report", h.reportHandler).Methods("GET")
	return r
}

func (h *APIHandler) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *APIHandler) latestSummaryHandler(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	if kind != model.KindBaseline && kind != model.KindAttack {
		writeError(w, http.StatusBadRequest, "kind must be baseline or attack")
		return
	}
	summary, err := snapshot.LoadLatestSummary(h.rootPath, kind)
	if err != nil {
		h.handleLoadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *APIHandler) latestAttackLogHandler(w http.ResponseWriter, r *http.Request) {
	l, err := snapshot.LoadLatestAttackLog(h.rootPath)
	if err != nil {
		h.handleLoadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *APIHandler) latestDeviationHandler(w http.ResponseWriter, r *http.Request) {
	d, err := snapshot.LoadLatestDeviation(h.rootPath)
	if err != nil {
		h.handleLoadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// reportHandler renders the HTML comparison of the latest summaries.
func (h *APIHandler) reportHandler(w http.ResponseWriter, r *http.Request) {
	baseline, err := snapshot.LoadLatestSummary(h.rootPath, model.KindBaseline)
	if err != nil {
		h.handleLoadError(w, err)
		return
	}
	attackSummary, err := snapshot.LoadLatestSummary(h.rootPath, model.KindAttack)
	if err != nil {
		h.handleLoadError(w, err)
		return
	}
	rep := report.Report{
		Baseline:    baseline,
		Attack:      attackSummary,
		Deviation:   deviation.Compare(baseline, attackSummary),
		GeneratedAt: time.Now(),
	}
	if l, err := snapshot.LoadLatestAttackLog(h.rootPath); err == nil {
		rep.Log = l
	}

	body, err := report.RenderHTML(rep)
	if err != nil {
		h.logger.WithError(err).Error("Failed to render report")
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(body))
}

func (h *APIHandler) handleLoadError(w http.ResponseWriter, err error) {
	if errors.Is(err, model.ErrMissingPriorSummary) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.logger.WithError(err).Error("Failed to load artifact")
	writeError(w, http.StatusInternalServerError, "failed to load artifact")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
