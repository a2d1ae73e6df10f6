package tts

import (
	"context"

	"github.com/kippsai/tts-gateway/internal/audio"
)

// Stream delivers the frames of one synthesis call in order.
//
// Frames is a bounded FIFO: the reader goroutine blocks while it is full, so a slow
// consumer applies backpressure to the network read instead of growing memory.
type Stream struct {
	requestID string
	frames    chan *SynthesizedAudio
	done      chan struct{}
	cancel    context.CancelFunc
	err       error
}

func newStream(requestID string, queueSize int, cancel context.CancelFunc) *Stream {
	return &Stream{
		requestID: requestID,
		frames:    make(chan *SynthesizedAudio, queueSize),
		done:      make(chan struct{}),
		cancel:    cancel,
	}
}

// RequestID identifies the call in logs and frame tags.
func (s *Stream) RequestID() string {
	return s.requestID
}

// Frames returns the frame channel. It is closed once the call completes or fails.
func (s *Stream) Frames() <-chan *SynthesizedAudio {
	return s.frames
}

// Err blocks until the stream has finished and returns the reason it stopped early, if any.
func (s *Stream) Err() error {
	<-s.done
	return s.err
}

// Close cancels the call. Buffered audio that has not formed a full frame is dropped.
func (s *Stream) Close() error {
	s.cancel()
	<-s.done
	return nil
}

func (s *Stream) send(ctx context.Context, a *SynthesizedAudio) error {
	select {
	case s.frames <- a:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Stream) finish(err error) {
	s.err = err
	close(s.frames)
	close(s.done)
	s.cancel()
}

// Collect drains the stream and returns its frames in order.
func Collect(ctx context.Context, s *Stream) ([]*audio.Frame, error) {
	var frames []*audio.Frame
	for {
		select {
		case a, ok := <-s.Frames():
			if !ok {
				return frames, s.Err()
			}
			frames = append(frames, a.Frame)
		case <-ctx.Done():
			s.Close()
			return frames, ctx.Err()
		}
	}
}
