package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	synthesisRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_gateway_synthesis_requests_total",
		Help: "Synthesis requests sent to the Kipps endpoint by outcome",
	}, []string{"status"})

	synthesisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tts_gateway_synthesis_duration_seconds",
		Help:    "Time from request start until the last frame was emitted",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	firstFrameLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tts_gateway_first_frame_seconds",
		Help:    "Time from request start until the first audio frame",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
	})

	framesEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_gateway_frames_total",
		Help: "Audio frames emitted by kind (full or flush)",
	}, []string{"kind"})

	audioBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_gateway_audio_bytes_total",
		Help: "Audio bytes received from the endpoint (in) and dropped on cancel (discarded)",
	}, []string{"direction"})

	textChunks = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tts_gateway_text_chunks",
		Help:    "Number of text chunks per synthesis call",
		Buckets: []float64{1, 2, 4, 8, 16, 32},
	})

	activeStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tts_gateway_active_streams",
		Help: "Synthesis streams currently producing frames",
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tts_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})
)

// Metrics tracks one synthesis request.
type Metrics struct {
	startTime  time.Time
	firstFrame sync.Once
	finished   sync.Once
}

// NewRequestMetrics starts tracking a request and marks the stream active.
func NewRequestMetrics() *Metrics {
	activeStreams.Inc()
	return &Metrics{startTime: time.Now()}
}

// RecordFrame counts an emitted frame. The first call also records time to first frame.
func (m *Metrics) RecordFrame(flushed bool) {
	m.firstFrame.Do(func() {
		firstFrameLatency.Observe(time.Since(m.startTime).Seconds())
	})
	kind := "full"
	if flushed {
		kind = "flush"
	}
	framesEmitted.WithLabelValues(kind).Inc()
}

// RecordAudioBytes records audio bytes processed
func (m *Metrics) RecordAudioBytes(direction string, bytes int64) {
	audioBytes.WithLabelValues(direction).Add(float64(bytes))
}

// RecordEnd closes the request with status "success", "error" or "cancelled".
// Only the first call counts.
func (m *Metrics) RecordEnd(status string) {
	m.finished.Do(func() {
		activeStreams.Dec()
		synthesisLatency.Observe(time.Since(m.startTime).Seconds())
		synthesisRequests.WithLabelValues(status).Inc()
	})
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordTextChunks records how many chunks a text was split into.
func RecordTextChunks(n int) {
	textChunks.Observe(float64(n))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}
