package resume

import "time"

// Report is the aggregate of one analysis run: exactly one outcome per
// recognized member, ordered by filename.
type Report struct {
	RunID       string    `json:"runId"`
	ArchiveName string    `json:"archive"`
	Outcomes    []Outcome `json:"outcomes"`
	Skipped     []string  `json:"skipped"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
}

// Succeeded counts outcomes carrying a record.
func (r *Report) Succeeded() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// Failed counts outcomes carrying an error.
func (r *Report) Failed() int {
	if r == nil {
		return 0
	}
	return len(r.Outcomes) - r.Succeeded()
}

// Duration is the wall time between start and finish.
func (r *Report) Duration() time.Duration {
	if r == nil || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
