package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/kippsai/tts-gateway/internal/tts"
	"github.com/kippsai/tts-gateway/internal/wav"
)

const maxRequestBody = 1 << 20

type speakRequest struct {
	Text    string `json:"text"`
	Chunked bool   `json:"chunked"`
}

// handleSpeak synthesizes the whole text and answers with a single WAVE file.
func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req speakRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	stream, err := s.start(r.Context(), req.Text, req.Chunked)
	if err != nil {
		s.logger.Warn().Err(err).Bool("chunked", req.Chunked).Msg("Speak request rejected")
		writeError(w, statusFor(err), err)
		return
	}
	logger := s.logger.With().Str("request_id", stream.RequestID()).Logger()

	frames, err := tts.Collect(r.Context(), stream)
	if err != nil {
		logger.Error().Err(err).Int("frames", len(frames)).Msg("Speak request failed mid-stream")
		writeError(w, statusFor(err), err)
		return
	}

	var pcm bytes.Buffer
	for _, f := range frames {
		pcm.Write(f.Data)
	}

	caps := s.synth.Capabilities()
	body := wav.Encode(pcm.Bytes(), caps.SampleRate, caps.NumChannels, 16)

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("X-Request-ID", stream.RequestID())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logger.Warn().Err(err).Msg("Failed to write speak response")
		return
	}

	logger.Info().
		Int("frames", len(frames)).
		Int("bytes", pcm.Len()).
		Msg("Speak request complete")
}
