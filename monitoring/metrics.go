package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"diabetesrisk/ml"
)

const namespace = "diabetesrisk"

// 预测错误类型
const (
	ErrorInvalidInput = "invalid_input"
	ErrorScoring      = "scoring"
	ErrorUnavailable  = "unavailable"
)

var defaultValueDesc = prometheus.NewDesc(
	namespace+"_feature_default",
	"Default value used for a feature when a request omits it",
	[]string{"feature", "kind"},
	nil,
)

// Metrics 服务指标，注册在独立的 registry 上
type Metrics struct {
	registry *prometheus.Registry

	predictions *prometheus.CounterVec
	errors      *prometheus.CounterVec
	duration    prometheus.Histogram
	reloads     *prometheus.CounterVec
	generation  prometheus.Gauge

	performance *PerformanceTracker
	realtime    *RealtimeMonitor
}

// NewMetrics 创建并注册全部指标；engine 不为空时导出当前默认值表
func NewMetrics(engine *ml.Engine) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Predictions served, by predicted class",
		}, []string{"class"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_errors_total",
			Help:      "Failed prediction requests, by error kind",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Time spent resolving and scoring a prediction",
			Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .05},
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_reloads_total",
			Help:      "Model and reference data rebuilds, by result",
		}, []string{"result"}),
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_generation",
			Help:      "Generation of the currently published predictor",
		}),
		performance: NewPerformanceTracker(defaultHistorySize),
	}

	m.registry.MustRegister(
		m.predictions,
		m.errors,
		m.duration,
		m.reloads,
		m.generation,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if engine != nil {
		m.registry.MustRegister(&DefaultsCollector{engine: engine})
	}
	return m
}

// ObservePrediction 记录一次成功预测
func (m *Metrics) ObservePrediction(result ml.Prediction, elapsed time.Duration) {
	m.predictions.WithLabelValues(strconv.Itoa(result.Class)).Inc()
	m.duration.Observe(elapsed.Seconds())
	m.performance.RecordPrediction(PredictionRecord{
		Probability: result.Probability,
		Class:       result.Class,
		Duration:    elapsed,
		Timestamp:   time.Now(),
	})
	if m.realtime != nil {
		_ = m.realtime.SendPrediction(PredictionMessage{
			Probability: result.Probability,
			Class:       result.Class,
			Duration:    elapsed,
		})
	}
}

// ObserveError 记录一次失败预测
func (m *Metrics) ObserveError(kind string) {
	m.errors.WithLabelValues(kind).Inc()
	m.performance.RecordError(kind)
	if m.realtime != nil {
		_ = m.realtime.SendError(ErrorMessage{Kind: kind})
	}
}

// Performance 返回滚动统计跟踪器
func (m *Metrics) Performance() *PerformanceTracker {
	return m.performance
}

// ObserveReload 记录一次重新加载
func (m *Metrics) ObserveReload(generation uint64, err error) {
	if err != nil {
		m.reloads.WithLabelValues("failure").Inc()
	} else {
		m.reloads.WithLabelValues("success").Inc()
		m.generation.Set(float64(generation))
	}

	if m.realtime != nil {
		event := ReloadMessage{Generation: generation, Success: err == nil}
		if err != nil {
			event.Error = err.Error()
		}
		_ = m.realtime.SendReload(event)
	}
}

// AttachRealtime 把事件同时推送到实时监控器，需在提供服务前调用
func (m *Metrics) AttachRealtime(monitor *RealtimeMonitor) {
	m.realtime = monitor
}

// Realtime 返回实时监控器，未挂载时为空
func (m *Metrics) Realtime() *RealtimeMonitor {
	return m.realtime
}

// Handler 返回 Prometheus 抓取接口
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry 返回底层 registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// DefaultsCollector 在每次抓取时读取当前发布的默认值表
type DefaultsCollector struct {
	engine *ml.Engine
}

func (c *DefaultsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- defaultValueDesc
}

func (c *DefaultsCollector) Collect(ch chan<- prometheus.Metric) {
	predictor, ok := c.engine.Predictor()
	if !ok {
		return
	}
	defaults := predictor.Defaults()
	for _, f := range ml.Features() {
		value, ok := defaults.Value(f.Name)
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(
			defaultValueDesc,
			prometheus.GaugeValue,
			value,
			f.Name,
			f.Kind.String(),
		)
	}
}
