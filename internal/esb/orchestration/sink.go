// Package orchestration implements the orchestration event sink (§4.6):
// the queue's push-sync handler for orchestration events, an idempotent
// event store, and the signaling of live instances to resume.
//
// OrchestrationStep and OrchestrationDefinition reference each other
// structurally, not by lifecycle ownership, so they are modeled as an
// arena of steps addressed by integer StepID rather than mutually-owning
// pointers (§9 DESIGN NOTES, §4.7 of the expanded spec).
package orchestration

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StepID indexes into OrchestrationDefinition.Steps.
type StepID int

// OrchestrationStep is one step of a workflow. Next lists successor steps
// by StepID within the same definition's arena.
type OrchestrationStep struct {
	ID   StepID
	Name string
	Next []StepID
}

// OrchestrationDefinition owns the full arena of steps for one workflow
// type.
type OrchestrationDefinition struct {
	Key   string
	Steps []OrchestrationStep
}

// Step returns the step at id, or false if out of range.
func (d *OrchestrationDefinition) Step(id StepID) (OrchestrationStep, bool) {
	if id < 0 || int(id) >= len(d.Steps) {
		return OrchestrationStep{}, false
	}
	return d.Steps[id], true
}

// InstanceStatus is the run state of an orchestration instance.
type InstanceStatus string

const (
	InstanceRunning   InstanceStatus = "Running"
	InstanceExecuting InstanceStatus = "Executing"
	InstanceCompleted InstanceStatus = "Completed"
	InstanceFailed    InstanceStatus = "Failed"
)

// Instance is a stateful long-running workflow driven by orchestration
// events.
type Instance struct {
	ID                uuid.UUID
	OrchestrationKey  string
	DefinitionKey     string
	CurrentStep       StepID
	Status            InstanceStatus
	resume            chan ResumeSignal
}

// ResumeSignal wakes a running/executing instance after a new event for
// its orchestration key has been persisted.
type ResumeSignal struct {
	EventID string
	At      time.Time
}

// Event is an orchestration event delivered through the queue's
// push-synchronous handler contract.
type Event struct {
	EventID          string // idempotency key
	OrchestrationKey string
	MessageID        uuid.UUID
	Payload          []byte
}

// Store persists orchestration events, keyed by event id for idempotent
// delivery, and instances keyed by orchestration key. Concrete backends
// (e.g. Mongo) implement this; Sink works against any Store.
type Store interface {
	SaveNewEvent(ctx context.Context, ev Event) (created bool, err error)
	InstancesForKey(ctx context.Context, orchestrationKey string) ([]*Instance, error)
}

// Sink is the queue's push-sync handler for orchestration events (§4.6).
type Sink struct {
	store Store

	mu        sync.RWMutex
	instances map[uuid.UUID]*Instance
}

// NewSink constructs a Sink backed by store.
func NewSink(store Store) *Sink {
	return &Sink{store: store, instances: make(map[uuid.UUID]*Instance)}
}

// Register makes an instance known to this sink so it can be signaled to
// resume when a matching event arrives. Typically called when an
// orchestration worker starts or resumes an instance in this process.
func (s *Sink) Register(inst *Instance) {
	if inst.resume == nil {
		inst.resume = make(chan ResumeSignal, 1)
	}
	s.mu.Lock()
	s.instances[inst.ID] = inst
	s.mu.Unlock()
}

// Unregister removes an instance, e.g. on completion or failure.
func (s *Sink) Unregister(id uuid.UUID) {
	s.mu.Lock()
	delete(s.instances, id)
	s.mu.Unlock()
}

// HandleEvent implements the four-step contract from §4.6:
//
//  1. stamp the event with its queued message id (caller's responsibility:
//     ev.MessageID is set before HandleEvent is invoked from the queue's
//     push-sync path),
//  2. persist via Store.SaveNewEvent, idempotent per event id,
//  3. look up all orchestration instances for the event's key,
//  4. signal every Running or Executing instance to resume.
func (s *Sink) HandleEvent(ctx context.Context, ev Event) error {
	created, err := s.store.SaveNewEvent(ctx, ev)
	if err != nil {
		return err
	}
	if !created {
		// Idempotent per event id: a duplicate delivery must not create a
		// duplicate stored event, and must not re-signal instances either.
		return nil
	}

	instances, err := s.store.InstancesForKey(ctx, ev.OrchestrationKey)
	if err != nil {
		return err
	}

	signal := ResumeSignal{EventID: ev.EventID, At: time.Now()}
	for _, inst := range instances {
		if inst.Status != InstanceRunning && inst.Status != InstanceExecuting {
			continue
		}
		s.mu.RLock()
		live, ok := s.instances[inst.ID]
		s.mu.RUnlock()
		if !ok || live.resume == nil {
			continue
		}
		select {
		case live.resume <- signal:
		default:
			// A resume is already pending; coalesce, same as the queue
			// dispatch loop coalescing concurrent triggers.
		}
	}
	return nil
}

// Wait blocks until inst receives a resume signal or ctx is done.
func (inst *Instance) Wait(ctx context.Context) (ResumeSignal, error) {
	if inst.resume == nil {
		inst.resume = make(chan ResumeSignal, 1)
	}
	select {
	case sig := <-inst.resume:
		return sig, nil
	case <-ctx.Done():
		return ResumeSignal{}, ctx.Err()
	}
}
