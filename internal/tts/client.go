package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kippsai/tts-gateway/internal/audio"
	"github.com/kippsai/tts-gateway/internal/observability"
	"github.com/kippsai/tts-gateway/internal/resilience"
	"github.com/kippsai/tts-gateway/internal/textchunk"
)

// maxErrorBody bounds how much of a failed response is kept in a TransmissionError.
const maxErrorBody = 64 << 10

// Ensure the client implements the interface.
var _ Synthesizer = (*Client)(nil)

// Client implements Synthesizer against the Kipps /speak endpoint.
type Client struct {
	opts       Options
	endpoint   string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	chunker    *textchunk.Chunker
}

// speakRequest represents the request payload for the Kipps TTS API
type speakRequest struct {
	Text string `json:"text"`
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCircuitBreaker shares a breaker between clients talking to the same endpoint.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) ClientOption {
	return func(c *Client) {
		c.breaker = cb
	}
}

// NewClient validates opts and creates a client.
func NewClient(opts Options, clientOpts ...ClientOption) (*Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	chunker, err := textchunk.NewChunker(opts.MaxChunkLength)
	if err != nil {
		return nil, err
	}

	c := &Client{
		opts:       opts,
		endpoint:   strings.TrimRight(opts.BaseURL, "/") + "/" + strings.TrimLeft(opts.SpeakPath, "/"),
		httpClient: &http.Client{Timeout: opts.Timeout},
		chunker:    chunker,
	}
	for _, o := range clientOpts {
		o(c)
	}
	if c.breaker == nil {
		c.breaker = resilience.NewCircuitBreaker("kipps", opts.BreakerMaxFailures, opts.BreakerResetTimeout)
		c.breaker.OnStateChange(func(name string, from, to resilience.CircuitState) {
			observability.UpdateCircuitBreakerState(name, int(to))
			logger := observability.GetLogger()
			logger.Warn().
				Str("service", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		})
	}
	return c, nil
}

// Options returns the validated options the client was built with.
func (c *Client) Options() Options {
	return c.opts
}

// Capabilities reports the frame format produced by the client.
func (c *Client) Capabilities() Capabilities {
	return Capabilities{
		Streaming:   false,
		SampleRate:  c.opts.SampleRate,
		NumChannels: c.opts.NumChannels,
		Languages:   Languages,
	}
}

// Healthy reports whether the next request would be sent to the endpoint. A
// breaker whose reset timeout has elapsed counts as healthy.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	if c.breaker.Available() {
		return true, nil
	}
	_, requests, failures, _ := c.breaker.GetStats()
	return false, fmt.Errorf("%w: %s failed %d of %d requests", resilience.ErrCircuitOpen, c.breaker.Name(), failures, requests)
}

// Close closes idle connections held by the client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Synthesize sends text in one request. A non-200 answer is returned as a
// *TransmissionError before any audio is read.
func (c *Client) Synthesize(ctx context.Context, text string) (*Stream, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	return c.startSequential(ctx, []string{text})
}

// SynthesizeChunked splits text at sentence boundaries and sends the chunks one after
// another, so frames arrive in text order. Each chunk gets its own accumulator.
// Only the first chunk's request error is returned directly; later ones end the stream.
func (c *Client) SynthesizeChunked(ctx context.Context, text string) (*Stream, error) {
	chunks := c.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, ErrEmptyText
	}
	observability.RecordTextChunks(len(chunks))
	return c.startSequential(ctx, chunks)
}

// SynthesizeConcurrent sends up to parallelism chunk requests at once. Frames are
// reassembled by segment index, so consumers still see text order.
func (c *Client) SynthesizeConcurrent(ctx context.Context, text string, parallelism int) (*Stream, error) {
	if parallelism <= 0 {
		parallelism = c.opts.Concurrency
	}
	chunks := c.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, ErrEmptyText
	}
	observability.RecordTextChunks(len(chunks))
	if parallelism == 1 || len(chunks) == 1 {
		return c.startSequential(ctx, chunks)
	}

	requestID := observability.NewRequestID()
	logger := observability.WithRequestID(requestID)
	metrics := observability.NewRequestMetrics()

	ctx, cancel := context.WithCancel(ctx)
	s := newStream(requestID, c.opts.QueueSize, cancel)

	go func() {
		err := c.runConcurrent(ctx, s, chunks, parallelism, logger, metrics)
		c.finish(ctx, s, err, logger, metrics)
	}()
	return s, nil
}

func (c *Client) startSequential(ctx context.Context, segments []string) (*Stream, error) {
	requestID := observability.NewRequestID()
	logger := observability.WithRequestID(requestID)
	metrics := observability.NewRequestMetrics()

	ctx, cancel := context.WithCancel(ctx)

	logger.Debug().Int("segments", len(segments)).Str("endpoint", c.endpoint).Msg("Starting synthesis")
	resp, err := c.post(ctx, segments[0])
	if err != nil {
		cancel()
		metrics.RecordEnd("error")
		observability.RecordError(errorType(err), "tts")
		logger.Error().Err(err).Msg("Synthesis request failed")
		return nil, err
	}

	s := newStream(requestID, c.opts.QueueSize, cancel)
	go func() {
		err := c.runSequential(ctx, s, resp, segments, logger, metrics)
		c.finish(ctx, s, err, logger, metrics)
	}()
	return s, nil
}

func (c *Client) runSequential(ctx context.Context, s *Stream, first *http.Response, segments []string, logger zerolog.Logger, metrics *observability.Metrics) error {
	resp := first
	for i, text := range segments {
		if i > 0 {
			var err error
			if resp, err = c.post(ctx, text); err != nil {
				return err
			}
		}

		segmentID := observability.NewRequestID()
		err := c.pump(ctx, resp.Body, metrics, func(f *audio.Frame) error {
			return s.send(ctx, &SynthesizedAudio{
				RequestID:    s.requestID,
				SegmentID:    segmentID,
				SegmentIndex: i,
				Frame:        f,
			})
		})
		resp.Body.Close()
		if err != nil {
			return err
		}
		logger.Debug().Int("segment", i).Str("segment_id", segmentID).Msg("Segment complete")
	}
	return nil
}

func (c *Client) runConcurrent(ctx context.Context, s *Stream, segments []string, parallelism int, logger zerolog.Logger, metrics *observability.Metrics) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	// Each segment owns a bounded queue; segments start in index order so the one
	// being drained below is always already running.
	queues := make([]chan *SynthesizedAudio, len(segments))
	for i := range queues {
		queues[i] = make(chan *SynthesizedAudio, c.opts.QueueSize)
	}

	go func() {
		for i, text := range segments {
			i, text := i, text
			g.Go(func() error {
				defer close(queues[i])
				return c.synthesizeSegment(gctx, s.requestID, i, text, queues[i], metrics)
			})
		}
	}()

	for i, q := range queues {
		for a := range q {
			if err := s.send(ctx, a); err != nil {
				// Unblock producers before waiting on them.
				s.cancel()
				for _, rest := range queues[i:] {
					for range rest {
					}
				}
				_ = g.Wait()
				return err
			}
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Debug().Int("segments", len(segments)).Int("parallelism", parallelism).Msg("Concurrent synthesis complete")
	return nil
}

func (c *Client) synthesizeSegment(ctx context.Context, requestID string, index int, text string, out chan<- *SynthesizedAudio, metrics *observability.Metrics) error {
	resp, err := c.post(ctx, text)
	if err != nil {
		return fmt.Errorf("segment %d: %w", index, err)
	}
	defer resp.Body.Close()

	segmentID := observability.NewRequestID()
	return c.pump(ctx, resp.Body, metrics, func(f *audio.Frame) error {
		select {
		case out <- &SynthesizedAudio{RequestID: requestID, SegmentID: segmentID, SegmentIndex: index, Frame: f}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// pump feeds body into a fresh accumulator in ReadChunkSize reads and emits frames as
// they complete. Flush runs only after a clean EOF; any other exit discards the tail.
func (c *Client) pump(ctx context.Context, body io.Reader, metrics *observability.Metrics, emit func(*audio.Frame) error) error {
	bstream, err := audio.NewByteStream(c.opts.SampleRate, c.opts.NumChannels, c.opts.SamplesPerFrame())
	if err != nil {
		return err
	}

	abort := func(err error) error {
		metrics.RecordAudioBytes("discarded", int64(bstream.Buffered()))
		bstream.Discard()
		return err
	}

	buf := make([]byte, c.opts.ReadChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			metrics.RecordAudioBytes("in", int64(n))
			for _, f := range bstream.Write(buf[:n]) {
				metrics.RecordFrame(false)
				if err := emit(f); err != nil {
					return abort(err)
				}
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return abort(ctxErr)
			}
			return abort(fmt.Errorf("failed to read audio stream: %w", readErr))
		}
	}

	for _, f := range bstream.Flush() {
		metrics.RecordFrame(true)
		if err := emit(f); err != nil {
			return err
		}
	}
	return nil
}

// post issues the synthesis request through the breaker, retrying only transient failures.
func (c *Client) post(ctx context.Context, text string) (*http.Response, error) {
	payload, err := json.Marshal(speakRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var resp *http.Response
	err = resilience.Retry(ctx, func(ctx context.Context) error {
		return c.breaker.Call(func() error {
			r, err := c.do(ctx, payload)
			if err != nil {
				return err
			}
			resp = r
			return nil
		}, tripsBreaker)
	}, &c.opts.Retry, isRetryable)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, payload []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewRetryableError(fmt.Errorf("failed to make request: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &TransmissionError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

func (c *Client) finish(ctx context.Context, s *Stream, err error, logger zerolog.Logger, metrics *observability.Metrics) {
	switch {
	case err == nil:
		metrics.RecordEnd("success")
		logger.Info().Msg("Synthesis complete")
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		metrics.RecordEnd("cancelled")
		logger.Warn().Err(err).Msg("Synthesis cancelled, partial frame dropped")
	default:
		metrics.RecordEnd("error")
		observability.RecordError(errorType(err), "tts")
		logger.Error().Err(err).Msg("Synthesis failed")
	}
	s.finish(err)
}

// tripsBreaker counts transport failures and server errors against the endpoint.
// Client errors (4xx) and cancellations say nothing about endpoint health.
func tripsBreaker(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var te *TransmissionError
	if errors.As(err, &te) {
		return te.StatusCode >= http.StatusInternalServerError
	}
	return true
}

func isRetryable(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *TransmissionError
	if errors.As(err, &te) {
		return te.Retryable()
	}
	return resilience.IsRetryable(err)
}

func errorType(err error) string {
	switch {
	case IsTransmissionError(err):
		return "transmission"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	default:
		return "transport"
	}
}
