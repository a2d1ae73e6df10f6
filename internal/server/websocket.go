package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kippsai/tts-gateway/internal/audio"
)

// Wire encodings a WebSocket client may ask for.
const (
	EncodingLinear16 = "linear16"
	EncodingPCMU     = "pcmu"
)

const writeWait = 10 * time.Second

// StreamRequest is a text message sent by a WebSocket client.
type StreamRequest struct {
	Text     string `json:"text"`
	Encoding string `json:"encoding,omitempty"`
	Chunked  bool   `json:"chunked,omitempty"`
}

// StreamEvent is a text message sent to a WebSocket client around the binary frames.
type StreamEvent struct {
	Event      string `json:"event"` // start, done, error
	RequestID  string `json:"request_id,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Frames     int    `json:"frames,omitempty"`
	Status     int    `json:"status,omitempty"`
	Message    string `json:"message,omitempty"`
}

type inbound struct {
	req StreamRequest
	err error
}

// handleStream serves one WebSocket connection. Requests on a connection are handled
// one at a time; a disconnect cancels the request in progress.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		s.logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}
	defer conn.Close()

	// Hijacked connections keep the server's deadlines.
	_ = conn.SetReadDeadline(time.Time{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	requests := make(chan inbound)
	go s.readRequests(ctx, cancel, conn, requests)

	s.logger.Info().Str("remote", r.RemoteAddr).Msg("WebSocket connection established")
	for in := range requests {
		if err := s.serveStream(ctx, conn, in); err != nil {
			s.logger.Warn().Err(err).Msg("WebSocket session ended")
			return
		}
	}
	s.logger.Info().Str("remote", r.RemoteAddr).Msg("WebSocket connection closed")
}

func (s *Server) readRequests(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out chan<- inbound) {
	defer close(out)
	defer cancel()

	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var in inbound
		if msgType != websocket.TextMessage {
			in.err = fmt.Errorf("expected a text message")
		} else if err := json.Unmarshal(message, &in.req); err != nil {
			in.err = fmt.Errorf("invalid request: %w", err)
		}

		select {
		case out <- in:
		case <-ctx.Done():
			return
		}
	}
}

// serveStream answers one request. It returns an error only when the connection is unusable.
func (s *Server) serveStream(ctx context.Context, conn *websocket.Conn, in inbound) error {
	if in.err != nil {
		return writeEvent(conn, StreamEvent{Event: "error", Status: http.StatusBadRequest, Message: in.err.Error()})
	}

	encoding := in.req.Encoding
	if encoding == "" {
		encoding = EncodingLinear16
	}
	if encoding != EncodingLinear16 && encoding != EncodingPCMU {
		return writeEvent(conn, StreamEvent{Event: "error", Status: http.StatusBadRequest, Message: fmt.Sprintf("unsupported encoding %q", encoding)})
	}

	stream, err := s.start(ctx, in.req.Text, in.req.Chunked)
	if err != nil {
		return writeEvent(conn, StreamEvent{Event: "error", Status: statusFor(err), Message: err.Error()})
	}
	defer stream.Close()

	logger := s.logger.With().Str("request_id", stream.RequestID()).Str("encoding", encoding).Logger()

	sampleRate := s.synth.Capabilities().SampleRate
	var pcmu *audio.PCMUEncoder
	if encoding == EncodingPCMU {
		if pcmu, err = audio.NewPCMUEncoder(sampleRate, audio.PCMURate); err != nil {
			return writeEvent(conn, StreamEvent{Event: "error", RequestID: stream.RequestID(), Status: http.StatusInternalServerError, Message: err.Error()})
		}
		sampleRate = audio.PCMURate
	}
	if err := writeEvent(conn, StreamEvent{Event: "start", RequestID: stream.RequestID(), Encoding: encoding, SampleRate: sampleRate}); err != nil {
		return err
	}

	frames := 0
	for a := range stream.Frames() {
		payload := a.Frame.Data
		if pcmu != nil {
			if payload, err = pcmu.Encode(a.Frame); err != nil {
				return writeEvent(conn, StreamEvent{Event: "error", RequestID: stream.RequestID(), Status: http.StatusInternalServerError, Message: err.Error()})
			}
			if len(payload) == 0 {
				continue
			}
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
			return fmt.Errorf("failed to send frame: %w", err)
		}
		frames++
	}

	if err := stream.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error().Err(err).Int("frames", frames).Msg("Stream request failed")
		return writeEvent(conn, StreamEvent{Event: "error", RequestID: stream.RequestID(), Status: statusFor(err), Message: err.Error()})
	}

	logger.Info().Int("frames", frames).Msg("Stream request complete")
	return writeEvent(conn, StreamEvent{Event: "done", RequestID: stream.RequestID(), Frames: frames})
}

func writeEvent(conn *websocket.Conn, ev StreamEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}
