// Package scheduler runs one cooperative sweep loop per configured Trusted
// Registry: a Public Directory sync sweep to completion, followed by a DID
// registry sync sweep for every DID it discovered, and, independently, an
// external HTTP directory sweep when one is configured.
//
// Grounded on the teacher's pkg/anchor/scheduler.go batchCheckLoop and
// pkg/anchor/event_watcher.go pollEvents: a time.Timer/time.Ticker driving a
// select over ctx.Done(), sleeping period_seconds on success and
// retry_period on failure.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/lacchain/trustlist/pkg/didsync"
	"github.com/lacchain/trustlist/pkg/extsource"
	"github.com/lacchain/trustlist/pkg/metrics"
	"github.com/lacchain/trustlist/pkg/pdsync"
	"github.com/lacchain/trustlist/pkg/registry"
)

// Registry bundles one Trusted Registry's workers: the Public Directory
// sync worker is required; the DID registry worker runs once per DID that
// worker discovers; the external source worker is optional.
type Registry struct {
	Index       int
	PdSync      *pdsync.Worker
	DidSync     *didsync.Worker
	ExtSource   *extsource.Worker // nil if this registry has no external source
	Dids        *registry.DidRepository
}

// Scheduler drives a sweep loop per configured Registry.
type Scheduler struct {
	Registries   []Registry
	StartupDelay time.Duration
	Period       time.Duration
	RetryPeriod  time.Duration
	Logger       *log.Logger
}

// New constructs a Scheduler over registries.
func New(registries []Registry, startupDelay, period, retryPeriod time.Duration, logger *log.Logger) *Scheduler {
	return &Scheduler{
		Registries:   registries,
		StartupDelay: startupDelay,
		Period:       period,
		RetryPeriod:  retryPeriod,
		Logger:       logger,
	}
}

// Run starts one sweep goroutine per registry, plus a second one for each
// registry with an external source, and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	done := make(chan struct{}, len(s.Registries)*2)

	for _, reg := range s.Registries {
		reg := reg
		go func() {
			s.runPdDidLoop(ctx, reg)
			done <- struct{}{}
		}()

		if reg.ExtSource != nil {
			reg := reg
			go func() {
				s.runExtSourceLoop(ctx, reg)
				done <- struct{}{}
			}()
		}
	}

	<-ctx.Done()
}

// runPdDidLoop sweeps a registry's Public Directory, then reverse-walks
// every DID it knows about, on a shared period/retry cadence.
func (s *Scheduler) runPdDidLoop(ctx context.Context, reg Registry) {
	if !s.sleep(ctx, s.StartupDelay) {
		return
	}

	for {
		err := s.sweepPdAndDids(ctx, reg)
		s.recordOutcome("public_directory", err)

		wait := s.Period
		if err != nil {
			s.Logger.Printf("registry %d: sweep failed: %v", reg.Index, err)
			wait = s.RetryPeriod
		}
		if !s.sleep(ctx, wait) {
			return
		}
	}
}

func (s *Scheduler) sweepPdAndDids(ctx context.Context, reg Registry) error {
	start := time.Now()
	defer func() { metrics.SweepDurationSeconds.WithLabelValues("public_directory").Observe(time.Since(start).Seconds()) }()

	if err := reg.PdSync.Sweep(ctx); err != nil {
		return err
	}

	dids, err := reg.Dids.FindAll(ctx, reg.PdSync.ContractAddress.Hex(), reg.PdSync.ChainID)
	if err != nil {
		return err
	}

	for _, didRow := range dids {
		didStart := time.Now()
		err := reg.DidSync.Sweep(ctx, didRow)
		metrics.SweepDurationSeconds.WithLabelValues("did_registry").Observe(time.Since(didStart).Seconds())
		s.recordOutcome("did_registry", err)
		if err != nil {
			s.Logger.Printf("registry %d: did %s sweep failed: %v", reg.Index, didRow.DID, err)
		}
	}
	return nil
}

// runExtSourceLoop polls a registry's external HTTP directory on the same
// period/retry cadence, independently of the on-chain sweep.
func (s *Scheduler) runExtSourceLoop(ctx context.Context, reg Registry) {
	if !s.sleep(ctx, s.StartupDelay) {
		return
	}

	for {
		start := time.Now()
		err := reg.ExtSource.Sweep(ctx)
		metrics.SweepDurationSeconds.WithLabelValues("external_source").Observe(time.Since(start).Seconds())
		s.recordOutcome("external_source", err)

		wait := s.Period
		if err != nil {
			s.Logger.Printf("registry %d: external source sweep failed: %v", reg.Index, err)
			wait = s.RetryPeriod
		}
		if !s.sleep(ctx, wait) {
			return
		}
	}
}

func (s *Scheduler) recordOutcome(worker string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.SweepsTotal.WithLabelValues(worker, outcome).Inc()
}

// sleep waits for d or ctx cancellation, reporting whether it completed the
// full wait without the context ending.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
