package notify

import "sync/atomic"

// Stats is a point-in-time copy of the pipeline counters.
type Stats struct {
	Submitted    int64 `json:"submitted"`
	Skipped      int64 `json:"skipped"`
	Dropped      int64 `json:"dropped"`
	NoRecipients int64 `json:"noRecipients"`
	Dispatched   int64 `json:"dispatched"`
	Failed       int64 `json:"failed"`
	Delivered    int64 `json:"delivered"`
	Undelivered  int64 `json:"undelivered"`
}

type counters struct {
	submitted    atomic.Int64 // readings below threshold accepted into the queue
	skipped      atomic.Int64 // readings at or above threshold
	dropped      atomic.Int64 // queue full or pipeline stopped
	noRecipients atomic.Int64
	dispatched   atomic.Int64 // jobs whose batch reached the gateway
	failed       atomic.Int64 // jobs that ended in a transport error
	delivered    atomic.Int64 // per recipient
	undelivered  atomic.Int64 // per recipient
}

func (c *counters) snapshot() Stats {
	return Stats{
		Submitted:    c.submitted.Load(),
		Skipped:      c.skipped.Load(),
		Dropped:      c.dropped.Load(),
		NoRecipients: c.noRecipients.Load(),
		Dispatched:   c.dispatched.Load(),
		Failed:       c.failed.Load(),
		Delivered:    c.delivered.Load(),
		Undelivered:  c.undelivered.Load(),
	}
}
