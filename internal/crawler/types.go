// Package crawler defines core types shared across subsystems.
package crawler

import (
	"errors"
	"sort"
	"time"
)

// ErrNoWorkers is returned when a run is started without any workers.
var ErrNoWorkers = errors.New("at least one worker is required")

// JobID identifies one unit of dispatchable work (a target URL).
type JobID string

// Record is one output row produced by a job. Values are scalars, strings or
// string slices; the field set is fixed per run.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Outcome is the per-call result of the fetch-execute unit.
type Outcome struct {
	Records     []Record
	Retries     int
	ParseErrors int
	Err         error
}

// Succeeded reports whether the job produced a usable result.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Dispatch is sent from the coordinator to a single worker.
type Dispatch struct {
	Job      JobID
	Sentinel bool
}

// SentinelDispatch tells a worker there is no more work.
func SentinelDispatch() Dispatch {
	return Dispatch{Sentinel: true}
}

// Result is sent from a worker to the coordinator inbox. Closed results carry
// no job and no records, only the worker's final report.
type Result struct {
	Rank    int
	Job     JobID
	Closed  bool
	Failed  bool
	Records []Record
	Report  WorkerReport
	Elapsed time.Duration
}

// WorkerReport holds the cumulative counters of a single worker.
type WorkerReport struct {
	Worker      int              `json:"worker"`
	JobsTotal   int64            `json:"jobs_total"`
	JobsSuccess int64            `json:"jobs_success"`
	JobsFailed  int64            `json:"jobs_failed"`
	Retries     int64            `json:"retries"`
	ParseErrors int64            `json:"parse_errors"`
	TotalTimeS  float64          `json:"total_time_s"`
	Samples     int64            `json:"samples"`
	Extra       map[string]int64 `json:"extra,omitempty"`
}

// Clone returns a deep copy so snapshots never alias the worker's live report.
func (r WorkerReport) Clone() WorkerReport {
	out := r
	if r.Extra != nil {
		out.Extra = make(map[string]int64, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Incr adds delta to a named extra counter.
func (r *WorkerReport) Incr(name string, delta int64) {
	if r.Extra == nil {
		r.Extra = make(map[string]int64)
	}
	r.Extra[name] += delta
}

// CombinedReport is the run-level summary persisted at the end of a run.
type CombinedReport struct {
	RunID             string           `json:"run_id"`
	Workers           int              `json:"workers"`
	JobsTotal         int64            `json:"jobs_total"`
	JobsSuccess       int64            `json:"jobs_success"`
	JobsFailed        int64            `json:"jobs_failed"`
	Retries           int64            `json:"retries"`
	ParseErrors       int64            `json:"parse_errors"`
	DuplicatesRemoved int              `json:"duplicates_removed"`
	TotalTimeS        float64          `json:"total_time_s"`
	AvgTimeS          float64          `json:"avg_time_s"`
	ElapsedS          float64          `json:"elapsed_s"`
	StartedAt         time.Time        `json:"started_at"`
	FinishedAt        time.Time        `json:"finished_at"`
	Extra             map[string]int64 `json:"extra,omitempty"`
}

// CheckpointState is the persisted completion record for a job list.
type CheckpointState struct {
	Fingerprint string  `json:"fingerprint" yaml:"fingerprint"`
	AllJobs     []JobID `json:"all_jobs" yaml:"all_jobs"`
	Completed   []JobID `json:"completed" yaml:"completed"`
}

// IsCompleted reports whether id is recorded as completed.
func (s CheckpointState) IsCompleted(id JobID) bool {
	for _, done := range s.Completed {
		if done == id {
			return true
		}
	}
	return false
}

// MarkCompleted appends id unless it is already present.
func (s *CheckpointState) MarkCompleted(id JobID) {
	if s.IsCompleted(id) {
		return
	}
	s.Completed = append(s.Completed, id)
}

// CompletedSet returns the completed IDs as a sorted slice copy.
func (s CheckpointState) CompletedSet() []JobID {
	out := append([]JobID(nil), s.Completed...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RunStatus is a point-in-time view of a run's progress.
type RunStatus struct {
	RunID         string      `json:"run_id"`
	State         RunState    `json:"state"`
	Workers       int         `json:"workers"`
	JobsTotal     int         `json:"jobs_total"`
	Completed     int         `json:"completed"`
	Pending       int         `json:"pending"`
	InFlight      int         `json:"in_flight"`
	ClosedWorkers int         `json:"closed_workers"`
	Slots         []SlotState `json:"slots"`
	StartedAt     time.Time   `json:"started_at"`
}

// Clone returns a copy that does not share the slot slice.
func (s RunStatus) Clone() RunStatus {
	s.Slots = append([]SlotState(nil), s.Slots...)
	return s
}

// RunState is the global state of the coordinator.
type RunState string

// Run states in lifecycle order.
const (
	RunStateIdle     RunState = "idle"
	RunStateRunning  RunState = "running"
	RunStateDraining RunState = "draining"
	RunStateDone     RunState = "done"
	RunStateFailed   RunState = "failed"
)

// SlotState tracks where a single worker is in the dispatch protocol.
type SlotState string

// Worker slot states.
const (
	SlotIdleStart      SlotState = "idle_start"
	SlotDispatched     SlotState = "dispatched"
	SlotAwaitingResult SlotState = "awaiting_result"
	SlotClosed         SlotState = "closed"
)
