package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/moisture-alerts/internal/sensor"
)

// Config holds the pipeline's tunables.
type Config struct {
	// Threshold below which a reading triggers an alert.
	Threshold   float64
	AlertPrefix string

	// Workers consuming the queue and the queue capacity. A full queue drops jobs.
	Workers   int
	QueueSize int

	DispatchTimeout time.Duration
}

// Pipeline turns low readings into SMS alerts off the ingest path. Jobs go
// through a bounded queue drained by a fixed set of workers; runs are
// independent and may finish in any order.
type Pipeline struct {
	cfg        Config
	enricher   Enricher
	resolver   RecipientResolver
	dispatcher Dispatcher

	jobs  chan NotificationJob
	group errgroup.Group
	stats counters

	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewPipeline creates a Pipeline. enricher may be nil, in which case alerts
// never carry a weather clause.
func NewPipeline(cfg Config, enricher Enricher, resolver RecipientResolver, dispatcher Dispatcher) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.AlertPrefix == "" {
		cfg.AlertPrefix = DefaultAlertPrefix
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 15 * time.Second
	}
	return &Pipeline{
		cfg:        cfg,
		enricher:   enricher,
		resolver:   resolver,
		dispatcher: dispatcher,
		jobs:       make(chan NotificationJob, cfg.QueueSize),
	}
}

// Start launches the workers. ctx is handed to every stage of every job;
// once it is done the workers exit and queued jobs are abandoned.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.closed {
		return
	}
	p.started = true

	for i := 0; i < p.cfg.Workers; i++ {
		p.group.Go(func() error {
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case job, ok := <-p.jobs:
					if !ok {
						return nil
					}
					p.process(ctx, job)
				}
			}
		})
	}
	log.Printf("INFO: pipeline: started %d workers (queue %d, threshold %g)", p.cfg.Workers, p.cfg.QueueSize, p.cfg.Threshold)
}

// Stop stops accepting jobs and waits for queued ones to finish. It returns
// the context error if the workers were cut short; jobs they left behind
// are counted as dropped.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	err := p.group.Wait()
	for job := range p.jobs {
		p.stats.dropped.Add(1)
		log.Printf("ERROR: pipeline: job %s dropped, workers exited: %v", job.ID, err)
	}
	if err != nil {
		log.Printf("ERROR: pipeline: stopped early: %v", err)
		return err
	}
	log.Println("INFO: pipeline: stopped")
	return nil
}

// Submit evaluates the reading and, if it is below the threshold, queues a
// job for it. It never blocks; the return value reports whether a job was queued.
func (p *Pipeline) Submit(r sensor.Reading) bool {
	if !r.Below(p.cfg.Threshold) {
		p.stats.skipped.Add(1)
		return false
	}

	job := NotificationJob{
		ID:      uuid.New(),
		Reading: r,
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.stats.dropped.Add(1)
		log.Printf("ERROR: pipeline: job %s dropped, pipeline stopped", job.ID)
		return false
	}

	select {
	case p.jobs <- job:
		p.stats.submitted.Add(1)
		return true
	default:
		p.stats.dropped.Add(1)
		log.Printf("ERROR: pipeline: job %s dropped, queue full (%d)", job.ID, p.cfg.QueueSize)
		return false
	}
}

// Stats returns a copy of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return p.stats.snapshot()
}

// process runs enrich, resolve and dispatch for one job, strictly in that order.
func (p *Pipeline) process(ctx context.Context, job NotificationJob) {
	if p.enricher != nil {
		conditions, err := p.enricher.Current(ctx)
		if err != nil {
			log.Printf("INFO: pipeline: job %s: enrichment failed, sending without weather: %v", job.ID, err)
		} else {
			job.EnrichedText = WeatherClause(conditions)
		}
	}

	recipients, err := p.resolver.ApprovedRecipients(ctx)
	if err != nil {
		p.stats.failed.Add(1)
		log.Printf("ERROR: pipeline: job %s: resolving recipients: %v", job.ID, err)
		return
	}
	if len(recipients) == 0 {
		p.stats.noRecipients.Add(1)
		log.Printf("INFO: pipeline: job %s: no approved recipients, nothing to send", job.ID)
		return
	}
	job.Recipients = recipients

	message := ComposeMessage(p.cfg.AlertPrefix, job.Reading, job.EnrichedText)

	sendCtx, cancel := context.WithTimeout(ctx, p.cfg.DispatchTimeout)
	defer cancel()

	outcomes, err := p.dispatcher.Send(sendCtx, message, job.Recipients)
	if err != nil {
		p.stats.failed.Add(1)
		log.Printf("ERROR: pipeline: job %s: dispatch to %d recipients failed: %v", job.ID, len(job.Recipients), err)
		return
	}
	p.stats.dispatched.Add(1)

	for _, o := range outcomes {
		if o.Delivered {
			p.stats.delivered.Add(1)
			log.Printf("INFO: pipeline: job %s: delivered to %s (%s)", job.ID, o.Recipient, o.CostOrError)
		} else {
			p.stats.undelivered.Add(1)
			log.Printf("ERROR: pipeline: job %s: not delivered to %s: %s", job.ID, o.Recipient, o.CostOrError)
		}
	}
}
