package saga

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// SupervisorConfig tunes the recovery loop
type SupervisorConfig struct {
	// ScanInterval is how often the store is scanned for stuck instances
	ScanInterval time.Duration

	// LeaseTimeout is how stale an active instance's UpdatedAt must be
	// before it is considered abandoned by its owner and re-dispatched
	LeaseTimeout time.Duration

	// MaxConcurrent bounds the number of instances driven at once
	MaxConcurrent int64

	// RedriveCompensationFailed also re-dispatches compensation-failed
	// sagas through ResumeCompensation. Off by default: that path is
	// normally operator-driven.
	RedriveCompensationFailed bool
}

// DefaultSupervisorConfig returns the configuration used when fields are unset
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		ScanInterval:  30 * time.Second,
		LeaseTimeout:  2 * time.Minute,
		MaxConcurrent: 32,
	}
}

// Supervisor provides liveness for saga instances whose owning executor died
// mid-step. It periodically scans the store for active instances past the
// lease timeout and hands them back to the executor. Because Run is
// idempotent on terminal status and resumes from the persisted cursor,
// re-dispatch is safe even when the original owner is merely slow: the CAS on
// the instance version lets exactly one of them make progress.
type Supervisor struct {
	store    StateStore
	executor *Executor
	config   SupervisorConfig

	sem    *semaphore.Weighted
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mux    sync.Mutex
}

// NewSupervisor creates a supervisor over the given store and executor
func NewSupervisor(store StateStore, executor *Executor, config SupervisorConfig) *Supervisor {
	def := DefaultSupervisorConfig()
	if config.ScanInterval <= 0 {
		config.ScanInterval = def.ScanInterval
	}
	if config.LeaseTimeout <= 0 {
		config.LeaseTimeout = def.LeaseTimeout
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = def.MaxConcurrent
	}

	return &Supervisor{
		store:    store,
		executor: executor,
		config:   config,
		sem:      semaphore.NewWeighted(config.MaxConcurrent),
	}
}

// Start runs an immediate scan and then scans on every tick until Stop is
// called or the context is cancelled
func (s *Supervisor) Start(ctx context.Context) {
	s.mux.Lock()
	defer s.mux.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if _, err := s.ScanOnce(ctx); err != nil {
			log.Printf("saga supervisor scan failed: %v", err)
		}

		ticker := time.NewTicker(s.config.ScanInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.ScanOnce(ctx); err != nil {
					log.Printf("saga supervisor scan failed: %v", err)
				}
			}
		}
	}()
}

// Stop cancels the scan loop and waits for in-flight dispatches to finish
func (s *Supervisor) Stop() {
	s.mux.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mux.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// ScanOnce queries for stuck instances and re-dispatches each to the
// executor. It returns the number of instances dispatched.
func (s *Supervisor) ScanOnce(ctx context.Context) (int, error) {
	olderThan := time.Now().Add(-s.config.LeaseTimeout)

	statuses := []Status{StatusPending, StatusRunning, StatusCompensating}
	if s.config.RedriveCompensationFailed {
		statuses = append(statuses, StatusCompensationFailed)
	}

	dispatched := 0
	for _, status := range statuses {
		instances, err := s.store.QueryByStatus(ctx, status, olderThan)
		if err != nil {
			return dispatched, errors.Wrapf(err, "failed to query %s sagas", status)
		}

		for _, instance := range instances {
			if err := s.dispatch(ctx, instance); err != nil {
				return dispatched, err
			}
			dispatched++
		}
	}
	return dispatched, nil
}

func (s *Supervisor) dispatch(ctx context.Context, instance *Instance) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return errors.Wrap(err, "supervisor shutting down")
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.sem.Release(1)

		var err error
		if instance.Status == StatusCompensationFailed {
			_, err = s.executor.ResumeCompensation(ctx, instance.SagaID)
		} else {
			_, err = s.executor.Run(ctx, instance.SagaID)
		}

		if err != nil {
			// Conflicts mean another owner made progress; anything else
			// waits for the next scan
			log.Printf("saga supervisor: re-dispatch of %s ended with: %v", instance.SagaID, err)
		}
	}()
	return nil
}
