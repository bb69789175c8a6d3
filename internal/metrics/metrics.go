package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 管线指标
type Metrics struct {
	indexBuilds     *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	pipelineResults *prometheus.CounterVec
	uploadStatus    *prometheus.CounterVec
}

// New 在给定的Registerer上注册指标，reg为空时使用默认Registerer
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		indexBuilds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfchat_index_builds_total",
				Help: "Number of EnsureIndexed calls by outcome",
			},
			[]string{"outcome"}, // outcome: built, reused, failed
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pdfchat_stage_duration_seconds",
				Help:    "Duration of pipeline stages",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		pipelineResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfchat_questions_total",
				Help: "Number of answered questions by terminal state",
			},
			[]string{"state", "error_code"},
		),
		uploadStatus: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfchat_upload_status_total",
				Help: "Number of upload status transitions",
			},
			[]string{"status"},
		),
	}
}

// ObserveIndexBuild 记录一次索引调用的结果
func (m *Metrics) ObserveIndexBuild(outcome string) {
	if m == nil {
		return
	}
	m.indexBuilds.WithLabelValues(outcome).Inc()
}

// ObserveStage 记录阶段耗时
func (m *Metrics) ObserveStage(stage string, started time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObservePipelineResult(state, errorCode string) {
	if m == nil {
		return
	}
	m.pipelineResults.WithLabelValues(state, errorCode).Inc()
}

func (m *Metrics) ObserveUploadStatus(status string) {
	if m == nil {
		return
	}
	m.uploadStatus.WithLabelValues(status).Inc()
}
