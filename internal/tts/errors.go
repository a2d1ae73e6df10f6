package tts

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrEmptyText is returned when there is nothing to synthesize.
var ErrEmptyText = errors.New("tts: text is empty")

// TransmissionError is a non-200 answer from the synthesis endpoint.
type TransmissionError struct {
	StatusCode int
	Body       string
}

func (e *TransmissionError) Error() string {
	return fmt.Sprintf("API error: %d - %s", e.StatusCode, e.Body)
}

// Retryable reports whether the endpoint may succeed on a later attempt.
func (e *TransmissionError) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// IsTransmissionError reports whether err carries an endpoint status.
func IsTransmissionError(err error) bool {
	var te *TransmissionError
	return errors.As(err, &te)
}
