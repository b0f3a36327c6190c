// Package benchmarks provides timing estimates for the steps of a server
// launch.
package benchmarks

import "time"

// DefaultTimings are typical step durations on a mid-size flavor (seconds).
var DefaultTimings = map[string]int{
	"create":    5,
	"wait":      40,
	"probe":     30,
	"sync":      5,
	"node":      1,
	"bootstrap": 120,
}

// StepOrder defines the sequence of launch steps for ETA calculation.
var StepOrder = []string{
	"create",
	"wait",
	"probe",
	"sync",
	"node",
	"bootstrap",
}

// StepRecord is a finished step of one server.
type StepRecord struct {
	Step     string
	Duration time.Duration
}

// EstimateRemaining calculates the estimated time remaining for one server
// based on its current step, the time spent in it, and the steps it has
// finished.
func EstimateRemaining(currentStep string, stepElapsed time.Duration, history []StepRecord, withBootstrap bool) time.Duration {
	scale := PerformanceScale(currentStep, stepElapsed, history)
	return EstimateRemainingWithScale(currentStep, stepElapsed, withBootstrap, scale)
}

// EstimateRemainingWithScale calculates ETA while applying a performance scale factor.
func EstimateRemainingWithScale(currentStep string, stepElapsed time.Duration, withBootstrap bool, scale float64) time.Duration {
	currentIdx := -1
	for i, s := range StepOrder {
		if s == currentStep {
			currentIdx = i
			break
		}
	}
	if currentIdx < 0 {
		return 0
	}

	var remaining time.Duration
	if expected, ok := expectedDuration(currentStep, scale); ok && expected > stepElapsed {
		remaining += expected - stepElapsed
	}
	for _, step := range StepOrder[currentIdx+1:] {
		if step == "bootstrap" && !withBootstrap {
			continue
		}
		if expected, ok := expectedDuration(step, scale); ok {
			remaining += expected
		}
	}
	return remaining
}

// PerformanceScale derives a speed multiplier from observed-vs-expected durations.
// Example: expected 40s, observed 60s => scale=1.5 (future ETAs are stretched by 50%).
func PerformanceScale(currentStep string, stepElapsed time.Duration, history []StepRecord) float64 {
	var expectedTotal, actualTotal time.Duration
	for _, rec := range history {
		expected, ok := expectedDuration(rec.Step, 1)
		if !ok {
			continue
		}
		expectedTotal += expected
		actualTotal += rec.Duration
	}

	// An overrunning step counts right away so the ETA adapts quickly.
	if expected, ok := expectedDuration(currentStep, 1); ok && stepElapsed > expected {
		expectedTotal += expected
		actualTotal += stepElapsed
	}

	if expectedTotal == 0 || actualTotal == 0 {
		return 1.0
	}
	scale := float64(actualTotal) / float64(expectedTotal)
	if scale < 0.6 {
		return 0.6
	}
	if scale > 3.0 {
		return 3.0
	}
	return scale
}

// TotalEstimate returns the total estimated time to launch one server.
func TotalEstimate(withBootstrap bool) time.Duration {
	return EstimateRemainingWithScale(StepOrder[0], 0, withBootstrap, 1)
}

func expectedDuration(step string, scale float64) (time.Duration, bool) {
	secs, ok := DefaultTimings[step]
	if !ok {
		return 0, false
	}
	return time.Duration(float64(time.Duration(secs)*time.Second) * scale), true
}
