// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package scheduler drives the periodic discovery and ingestion passes.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Phase is one schedulable unit of work.
type Phase func(ctx context.Context) error

// PhaseStatus is a snapshot of one phase's most recent run.
type PhaseStatus struct {
	LastStarted  time.Time `json:"lastStarted,omitzero"`
	LastFinished time.Time `json:"lastFinished,omitzero"`
	LastError    string    `json:"lastError,omitempty"`
	Running      bool      `json:"running"`
}

// Scheduler runs the discovery and ingestion phases on fixed cadences. Each
// phase skips a tick if its previous run is still going.
type Scheduler struct {
	cron *cron.Cron

	discovery phaseRunner
	ingestion phaseRunner
}

type phaseRunner struct {
	name string
	run  Phase
	mu   sync.Mutex

	stateMu sync.Mutex
	status  PhaseStatus
}

// tick runs the phase unless the previous run still holds the lock.
func (p *phaseRunner) tick(ctx context.Context) {
	if !p.mu.TryLock() {
		log.Printf("scheduler: %s still running, skipping tick", p.name)
		return
	}
	defer p.mu.Unlock()
	p.exec(ctx, "")
}

// exec runs the phase and records its outcome. Callers hold p.mu.
func (p *phaseRunner) exec(ctx context.Context, label string) {
	start := time.Now()
	p.setStatus(func(st *PhaseStatus) {
		st.LastStarted = start
		st.Running = true
	})

	err := p.run(ctx)

	p.setStatus(func(st *PhaseStatus) {
		st.LastFinished = time.Now()
		st.Running = false
		st.LastError = ""
		if err != nil {
			st.LastError = err.Error()
		}
	})

	if err != nil {
		log.Printf("scheduler: %s%s failed after %s: %v", label, p.name, time.Since(start).Round(time.Millisecond), err)
		return
	}
	log.Printf("scheduler: %s%s finished in %s", label, p.name, time.Since(start).Round(time.Millisecond))
}

func (p *phaseRunner) setStatus(f func(*PhaseStatus)) {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	f(&p.status)
}

func (p *phaseRunner) snapshot() PhaseStatus {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.status
}

// New builds a scheduler over the two phases. Cadences are in minutes.
func New(ctx context.Context, discovery, ingestion Phase, discoveryEvery, ingestionEvery time.Duration) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(),
		discovery: phaseRunner{name: "discovery", run: discovery},
		ingestion: phaseRunner{name: "ingestion", run: ingestion},
	}

	if _, err := s.cron.AddFunc(every(discoveryEvery), func() { s.discovery.tick(ctx) }); err != nil {
		return nil, fmt.Errorf("schedule discovery: %w", err)
	}
	if _, err := s.cron.AddFunc(every(ingestionEvery), func() { s.ingestion.tick(ctx) }); err != nil {
		return nil, fmt.Errorf("schedule ingestion: %w", err)
	}
	return s, nil
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

// Start begins scheduling. The first runs happen one cadence after Start, not
// immediately; callers wanting an immediate pass trigger one via RunDiscovery.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for any in-flight phase to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()

	// Ticks no longer fire; taking both locks proves nothing is mid-run.
	s.discovery.mu.Lock()
	s.discovery.mu.Unlock()
	s.ingestion.mu.Lock()
	s.ingestion.mu.Unlock()
}

// Status returns the most recent run outcome per phase.
func (s *Scheduler) Status() map[string]PhaseStatus {
	return map[string]PhaseStatus{
		s.discovery.name: s.discovery.snapshot(),
		s.ingestion.name: s.ingestion.snapshot(),
	}
}

// RunDiscovery triggers one discovery pass outside the schedule. Returns false
// if a scheduled pass is already running.
func (s *Scheduler) RunDiscovery(ctx context.Context) bool {
	return s.runNow(ctx, &s.discovery)
}

// RunIngestion triggers one ingestion pass outside the schedule.
func (s *Scheduler) RunIngestion(ctx context.Context) bool {
	return s.runNow(ctx, &s.ingestion)
}

func (s *Scheduler) runNow(ctx context.Context, p *phaseRunner) bool {
	if !p.mu.TryLock() {
		return false
	}
	go func() {
		defer p.mu.Unlock()
		p.exec(ctx, "manual ")
	}()
	return true
}
