// Package orchestrator is the engine's composition root: it sequences
// ingest → render → hash/store → attest → (receipt) and wraps the drift
// detector, owning the only in-flight operation state in the system.
// Graphs, Artifacts and Attestations remain shared immutable values once
// produced; the orchestrator itself is the sole mutable component.
package orchestrator

import (
	"context"
	"sync"

	"github.com/provgraph/engine/internal/attest"
	"github.com/provgraph/engine/internal/cas"
	"github.com/provgraph/engine/internal/clock"
	"github.com/provgraph/engine/internal/drift"
	"github.com/provgraph/engine/internal/engineerr"
	"github.com/provgraph/engine/internal/receiptstore"
	"github.com/provgraph/engine/internal/render"
)

// State is the orchestrator's lifecycle state: initializing → ready →
// shutting-down → shutdown, with any state able to move to error.
type State string

const (
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateShuttingDown State = "shutting-down"
	StateShutdown     State = "shutdown"
	StateError        State = "error"
)

// Engine is the orchestrator. It is safe for concurrent use.
type Engine struct {
	cfg   Config
	clock clock.Clock

	store    cas.Store
	render   *render.Engine
	attester *attest.Attester
	verifier *attest.Verifier
	drift    *drift.Detector
	receipts receiptstore.Store // nil when git-notes are disabled

	mu    sync.RWMutex
	state State

	ops    *operationRegistry
	events *subscriberRegistry

	drainWG sync.WaitGroup
}

// New constructs an Engine in the "initializing" state and transitions it
// to "ready" once every collaborator is wired, or to "error" on a fatal
// construction failure.
func New(cfg Config, ck clock.Clock) (*Engine, error) {
	e := &Engine{
		cfg:    cfg,
		clock:  ck,
		ops:    newOperationRegistry(),
		events: newSubscriberRegistry(),
		state:  StateInitializing,
	}
	if e.clock == nil {
		e.clock = clock.System{}
	}

	store, err := cas.New(cfg.CAS)
	if err != nil {
		e.state = StateError
		return nil, engineerr.Wrap(engineerr.KindIO, err)
	}
	e.store = store

	renderCfg := cfg.Render
	if renderCfg == (render.Config{}) {
		renderCfg = render.DefaultConfig()
	}
	e.render = render.New(cfg.Renderer, renderCfg)
	e.attester = attest.New(attest.Config{
		SigningKeyPath:   cfg.Attestation.SigningKeyPath,
		VerifyingKeyPath: cfg.Attestation.VerifyingKeyPath,
	})
	e.verifier = attest.NewVerifier()

	d, err := drift.NewDetector(drift.Options{CacheCapacity: cfg.Drift.CacheCapacity, Clock: e.clock})
	if err != nil {
		e.state = StateError
		return nil, engineerr.Wrap(engineerr.KindIO, err)
	}
	e.drift = d

	if cfg.Attestation.EnableGitNotes {
		e.receipts = receiptstore.NewGitNotesStore(cfg.RepoDir, nil)
	}

	e.state = StateReady
	e.events.emit(Event{Kind: EventEngineReady})
	return e, nil
}

// Subscribe registers fn to receive every emitted Event until the returned
// func is called.
func (e *Engine) Subscribe(fn func(Event)) func() {
	return e.events.Subscribe(fn)
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// ListOperations returns a snapshot of every in-flight operation.
func (e *Engine) ListOperations() []Descriptor {
	return e.ops.List()
}

// admit checks the ready gate: new operations are refused with a
// ShutdownError unless the engine state is ready.
func (e *Engine) admit() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state != StateReady {
		return engineerr.New(engineerr.KindShutdown, "orchestrator: operation rejected, state=%s", e.state)
	}
	return nil
}

// Shutdown transitions ready → shutting-down, blocks new operations,
// drains in-flight ones, then moves to shutdown and clears caches. It is
// idempotent.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	if e.state == StateShutdown {
		e.mu.Unlock()
		return nil
	}
	e.state = StateShuttingDown
	e.mu.Unlock()

	e.events.emit(Event{Kind: EventShutdown})

	// Give in-flight operations a chance to reach a suspension point and
	// observe cancellation, then wait for them to actually finish.
	e.ops.CancelAll()
	e.drainWG.Wait()

	if e.cfg.CAS.Backend == cas.BackendMemory {
		_ = e.store.Clear(context.Background(), true)
	}

	e.mu.Lock()
	e.state = StateShutdown
	e.mu.Unlock()
	return nil
}
