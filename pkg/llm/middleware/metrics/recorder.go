// Package metrics provides metrics recording for upstream LLM calls.
package metrics

import "time"

// Recorder defines the interface for recording LLM operation metrics.
type Recorder interface {
	// ObserveRequest records metrics for a completed LLM request.
	ObserveRequest(
		model string,
		promptTokens, completionTokens int,
		success bool,
		errorType string,
		duration time.Duration,
	)
}

// NoopRecorder discards all observations.
type NoopRecorder struct{}

// ObserveRequest implements Recorder.
func (NoopRecorder) ObserveRequest(string, int, int, bool, string, time.Duration) {}
