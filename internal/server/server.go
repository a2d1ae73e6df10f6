// Package server exposes synthesis over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kippsai/tts-gateway/internal/observability"
	"github.com/kippsai/tts-gateway/internal/resilience"
	"github.com/kippsai/tts-gateway/internal/tts"
)

// Synthesizer is what the HTTP surface needs from a synthesis client.
type Synthesizer interface {
	tts.Synthesizer

	// SynthesizeConcurrent splits text into chunks; parallelism 0 uses the client default.
	SynthesizeConcurrent(ctx context.Context, text string, parallelism int) (*tts.Stream, error)

	// Healthy reports whether the synthesis endpoint is accepting requests.
	Healthy(ctx context.Context) (bool, error)
}

// Server routes requests to a Synthesizer.
type Server struct {
	synth          Synthesizer
	metricsEnabled bool
	logger         zerolog.Logger
	upgrader       websocket.Upgrader
}

// New creates a server. /metrics is only mounted when metricsEnabled is set.
func New(synth Synthesizer, metricsEnabled bool) *Server {
	return &Server{
		synth:          synth,
		metricsEnabled: metricsEnabled,
		logger:         observability.GetLogger().With().Str("component", "server").Logger(),
		upgrader: websocket.Upgrader{
			// Origin is enforced at the ingress.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/speak", s.handleSpeak)
	mux.HandleFunc("GET /v1/stream", s.handleStream)

	mux.HandleFunc("GET /health", observability.HealthCheckHandler())
	mux.HandleFunc("GET /ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"kipps": s.synth.Healthy,
	}))

	if s.metricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	return mux
}

// start begins synthesis. Chunked requests go through the chunker and may fan out.
func (s *Server) start(ctx context.Context, text string, chunked bool) (*tts.Stream, error) {
	if chunked {
		return s.synth.SynthesizeConcurrent(ctx, text, 0)
	}
	return s.synth.Synthesize(ctx, text)
}

// statusFor maps a synthesis error to the status reported to our own caller.
func statusFor(err error) int {
	var te *tts.TransmissionError
	switch {
	case errors.Is(err, tts.ErrEmptyText):
		return http.StatusBadRequest
	case errors.As(err, &te):
		return http.StatusBadGateway
	case errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// upstreamStatus returns the endpoint's status code, or 0 if err did not come from it.
func upstreamStatus(err error) int {
	var te *tts.TransmissionError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}

type errorResponse struct {
	Error          string `json:"error"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error(), UpstreamStatus: upstreamStatus(err)})
}
