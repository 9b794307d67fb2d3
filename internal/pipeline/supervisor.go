package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"chat-pipeline/internal/telemetry"
)

// Supervisor owns the pipeline State and drives the periodic jobs. It is
// the single long-lived object whose lifecycle is init on startup and
// teardown on shutdown; every flag mutation routes through the components
// it injects itself into.
type Supervisor struct {
	state      *State
	writer     *BatchWriter
	reconciler *Reconciler
	audit      *telemetry.AuditEmitter

	writerPeriod    time.Duration
	reconcilePeriod time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSupervisor wires the periodic jobs around a shared State.
func NewSupervisor(state *State, writer *BatchWriter, reconciler *Reconciler, audit *telemetry.AuditEmitter, writerPeriod, reconcilePeriod time.Duration) *Supervisor {
	return &Supervisor{
		state:           state,
		writer:          writer,
		reconciler:      reconciler,
		audit:           audit,
		writerPeriod:    writerPeriod,
		reconcilePeriod: reconcilePeriod,
	}
}

// State exposes the supervisor-owned state for the health surface.
func (s *Supervisor) State() *State {
	return s.state
}

// Start launches the writer and reconciler loops.
func (s *Supervisor) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.writerPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				wasLeader := s.state.IsLeader()
				s.writer.Tick(ctx)
				if isLeader := s.state.IsLeader(); isLeader != wasLeader {
					if isLeader {
						s.audit.Emit(ctx, "INFO", "batch writer leadership acquired")
					} else {
						s.audit.Emit(ctx, "WARN", "batch writer leadership released")
					}
				}
			}
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.reconcilePeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.reconciler.Tick(ctx)
			}
		}
	}()

	log.Printf("pipeline supervisor started writer_period=%s reconcile_period=%s", s.writerPeriod, s.reconcilePeriod)
}

// Stop halts the loops and releases leadership if held.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	if s.state.IsLeader() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.writer.demote(ctx)
		s.audit.Emit(ctx, "INFO", "batch writer leadership released on shutdown")
	}
	log.Println("pipeline supervisor stopped")
}
