package domain

import "time"

// Report summarises one reconciliation sweep.
type Report struct {
	StartedAt time.Time
	Scanned   int
	Settled   int
	Skipped   int
	Failed    []string
}

func (r Report) Clean() bool { return len(r.Failed) == 0 }
