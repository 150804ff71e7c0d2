package domain

import "time"

// Status is the run state of a step or a whole pipeline execution.
type Status string

const (
	StatusSucceeded Status = "Succeeded"
	StatusFailed    Status = "Failed"
	StatusExecuting Status = "Executing"
	StatusStarting  Status = "Starting"
	StatusStopping  Status = "Stopping"
	StatusStopped   Status = "Stopped"
	StatusUnknown   Status = "Unknown"
)

// NormalizeStatus maps free-form upstream status strings onto the known
// set, defaulting to Unknown.
func NormalizeStatus(raw string) Status {
	switch Status(raw) {
	case StatusSucceeded, StatusFailed, StatusExecuting, StatusStarting, StatusStopping, StatusStopped:
		return Status(raw)
	default:
		return StatusUnknown
	}
}

// InProgress reports whether the status describes a run that has not
// reached a terminal state.
func (s Status) InProgress() bool {
	return s == StatusExecuting || s == StatusStarting || s == StatusStopping
}

// RunInfo carries the runtime state of one step from the most recent
// execution. Absence on a Node means the graph is definition-only for
// that step.
type RunInfo struct {
	Status       Status             `json:"status"`
	StartTime    time.Time          `json:"startTime,omitzero"`
	EndTime      time.Time          `json:"endTime,omitzero"`
	ElapsedSec   *int64             `json:"elapsedSec,omitempty"`
	JobARN       string             `json:"jobArn,omitempty"`
	JobName      string             `json:"jobName,omitempty"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	ReportObject string             `json:"reportObject,omitempty"`
	Registry     *ModelRegistryRef  `json:"registry,omitempty"`
}

// ModelRegistryRef points at a registered model package produced by a
// registration step.
type ModelRegistryRef struct {
	ModelPackageARN string `json:"modelPackageArn"`
}

// ComputeElapsed fills ElapsedSec from the start/end pair. A missing end
// time on an in-progress run is measured against now; the result is
// clamped at zero.
func (r *RunInfo) ComputeElapsed(now time.Time) {
	if r.StartTime.IsZero() {
		return
	}
	end := r.EndTime
	if end.IsZero() {
		if !r.Status.InProgress() {
			return
		}
		end = now
	}
	sec := int64(end.Sub(r.StartTime) / time.Second)
	if sec < 0 {
		sec = 0
	}
	r.ElapsedSec = &sec
}
