package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"diabetesrisk/ml"
	"diabetesrisk/monitoring"
)

// Handlers 预测服务的处理器集合
type Handlers struct {
	engine  *ml.Engine
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewHandlers 创建处理器；metrics 可为空
func NewHandlers(engine *ml.Engine, metrics *monitoring.Metrics, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{engine: engine, metrics: metrics, logger: logger}
}

// RegisterHandlers 注册全部路由
func RegisterHandlers(mux *http.ServeMux, h *Handlers) {
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/features", h.handleFeatures)
	mux.HandleFunc("GET /predict", h.handlePredict)
	if h.metrics != nil {
		mux.HandleFunc("GET /api/stats", h.handleStats)
		if monitor := h.metrics.Realtime(); monitor != nil {
			mux.HandleFunc("GET /ws/monitor", monitor.HandleWebSocket)
		}
		mux.Handle("GET /metrics", h.metrics.Handler())
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Feature string `json:"feature,omitempty"`
}

type featureResponse struct {
	Name    string         `json:"name"`
	Kind    ml.FeatureKind `json:"kind"`
	Default *float64       `json:"default,omitempty"`
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) handleFeatures(w http.ResponseWriter, r *http.Request) {
	features := ml.Features()
	response := make([]featureResponse, 0, len(features))

	predictor, ok := h.engine.Predictor()
	for _, f := range features {
		entry := featureResponse{Name: f.Name, Kind: f.Kind}
		if ok {
			if value, found := predictor.Defaults().Value(f.Name); found {
				entry.Default = &value
			}
		}
		response = append(response, entry)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"features":   response,
		"generation": h.engine.Generation(),
	})
}

func (h *Handlers) handleStats(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("recent"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: "recent must be a non-negative integer"})
			return
		}
		limit = n
	}

	tracker := h.metrics.Performance()
	response := map[string]interface{}{
		"stats":      tracker.CalculateMetrics(),
		"generation": h.engine.Generation(),
	}
	if limit > 0 {
		response["recent"] = tracker.GetRecent(limit)
	}
	respondJSON(w, http.StatusOK, response)
}

func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := GetStartTime(r.Context())
	if start.IsZero() {
		start = time.Now()
	}

	// 整个请求只读取一次快照，默认值与模型始终来自同一版本
	predictor, ok := h.engine.Predictor()
	if !ok {
		h.observeError(monitoring.ErrorUnavailable)
		respondJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "model not loaded"})
		return
	}

	result, err := predictor.Predict(ml.OverridesFromQuery(r.URL.Query()))
	if err != nil {
		h.respondPredictError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.ObservePrediction(result, time.Since(start))
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handlers) respondPredictError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *ml.InvalidFeatureValueError
	if errors.As(err, &invalid) {
		h.observeError(monitoring.ErrorInvalidInput)
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Feature: invalid.Feature})
		return
	}

	h.observeError(monitoring.ErrorScoring)
	h.logger.Error("prediction failed",
		zap.String("request_id", GetRequestID(r.Context())),
		zap.Error(err),
	)
	respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "prediction failed"})
}

func (h *Handlers) observeError(kind string) {
	if h.metrics != nil {
		h.metrics.ObserveError(kind)
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("failed to encode JSON", zap.Error(err))
	}
}
