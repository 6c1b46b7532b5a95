// Package schedule runs recurring digest jobs: each job summarizes a fixed
// window on a cron cadence and hands the result to a delivery callback.
package schedule

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/Protocol-Lattice/go-recap/src/summarizer"
)

// DigestJob describes one recurring digest.
type DigestJob struct {
	// Name identifies the job in logs and deliveries.
	Name string
	// Spec is a standard five-field cron expression, e.g. "0 9 * * *".
	Spec string
	// Range is the window expression summarized on every firing ("3h", "1d").
	Range string
	// User optionally restricts the digest to one author.
	User string
}

// Delivery receives each digest result. Err is non-nil when the run failed;
// summarizer.ErrNoData is a normal outcome for a quiet window.
type Delivery func(job DigestJob, res *summarizer.Result, err error)

// Service schedules digest jobs over one summarizer.
type Service struct {
	summarizer *summarizer.RecursiveSummarizer
	deliver    Delivery
	timeout    time.Duration

	mu      sync.Mutex
	cron    *rcron.Cron
	entries map[string]rcron.EntryID
	cancel  context.CancelFunc
}

// NewService builds a digest service. deliver must not be nil.
func NewService(s *summarizer.RecursiveSummarizer, deliver Delivery) *Service {
	return &Service{
		summarizer: s,
		deliver:    deliver,
		timeout:    10 * time.Minute,
		entries:    make(map[string]rcron.EntryID),
	}
}

// Start begins firing jobs. It returns after scheduling; jobs run on the
// cron's goroutine until Stop or ctx cancellation.
func (s *Service) Start(ctx context.Context, jobs []DigestJob) error {
	if s.deliver == nil {
		return fmt.Errorf("schedule: delivery callback is nil")
	}

	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.cron = rcron.New()
	for _, job := range jobs {
		if err := s.register(runCtx, job); err != nil {
			s.mu.Unlock()
			cancel()
			return err
		}
	}
	s.cron.Start()
	s.mu.Unlock()

	log.Printf("schedule: started with %d digest jobs", len(jobs))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Service) register(ctx context.Context, job DigestJob) error {
	// Validate the window up front so a bad job fails Start, not its first
	// firing.
	if _, _, err := summarizer.ParseWindow(job.Range); err != nil {
		return fmt.Errorf("schedule: job %s: %w", job.Name, err)
	}

	id, err := s.cron.AddFunc(job.Spec, func() {
		s.run(ctx, job)
	})
	if err != nil {
		return fmt.Errorf("schedule: job %s (%s): %w", job.Name, job.Spec, err)
	}
	s.entries[job.Name] = id
	return nil
}

func (s *Service) run(ctx context.Context, job DigestJob) {
	log.Printf("schedule: running digest %s (range %s)", job.Name, job.Range)

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.summarizer.SummarizeWindow(runCtx, job.Range, job.User)
	if err != nil {
		log.Printf("schedule: digest %s failed: %v", job.Name, err)
	}
	s.deliver(job, res, err)
}

// Stop halts the scheduler and waits for in-flight jobs to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	cron := s.cron
	cancel := s.cancel
	s.cron = nil
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if cron != nil {
		<-cron.Stop().Done()
		log.Printf("schedule: stopped")
	}
}
