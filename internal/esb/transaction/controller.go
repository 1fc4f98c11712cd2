// Package transaction provides the per-operation commit/rollback
// coordinator that queue and sink operations enroll side effects in.
//
// Grounded on the teacher's TransactionInterceptor-style wrap pattern
// (internal/router/mediator: wrap the real work, classify the outcome,
// decide the follow-up action) generalized from "HTTP call" to "schedule
// commit or rollback of enrolled side effects".
package transaction

import (
	"context"
	"sync"
)

// Controller is owned by a single operation scope and is never shared
// across scopes (§5 Shared resources).
type Controller struct {
	mu            sync.Mutex
	rollbackError error
	scheduled     bool
	commit        bool
	onCommit      []func(context.Context) error
	onRollback    []func(context.Context) error
}

// New returns a fresh, uncommitted controller.
func New() *Controller {
	return &Controller{}
}

// Enroll registers side effects to run on commit and on rollback
// respectively. Either may be nil.
func (c *Controller) Enroll(onCommit, onRollback func(context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if onCommit != nil {
		c.onCommit = append(c.onCommit, onCommit)
	}
	if onRollback != nil {
		c.onRollback = append(c.onRollback, onRollback)
	}
}

// ScheduleCommit marks the controller to commit when Execute runs, unless a
// rollback has already been scheduled.
func (c *Controller) ScheduleCommit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.scheduled {
		c.commit = true
		c.scheduled = true
	}
}

// ScheduleRollback marks the controller to roll back when Execute runs.
// Rollback always wins over a prior ScheduleCommit call.
func (c *Controller) ScheduleRollback(detail error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commit = false
	c.scheduled = true
	c.rollbackError = detail
}

// HasTransactionRollbackError reports whether rollback has been scheduled.
func (c *Controller) HasTransactionRollbackError() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scheduled && !c.commit
}

// Execute runs the enrolled side effects for whichever outcome was
// scheduled. If nothing was scheduled, it defaults to commit (mirrors the
// "fresh transaction commits unless HasTransactionRollbackError" rule in
// spec §4.2).
func (c *Controller) Execute(ctx context.Context) error {
	c.mu.Lock()
	commit := c.commit || !c.scheduled
	hooks := c.onCommit
	if !commit {
		hooks = c.onRollback
	}
	c.mu.Unlock()

	for _, hook := range hooks {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RollbackError returns the detail passed to the most recent
// ScheduleRollback call, if any.
func (c *Controller) RollbackError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollbackError
}

// Intercept is the small combinator spec §9 describes: wrap work with
// commit/rollback scheduling and an error path, expressed as a
// higher-order function taking the work and the error reporter; the
// controller's own Execute is the finalizer.
func Intercept(ctx context.Context, ctrl *Controller, work func(*Controller) error, onError func(error)) error {
	if err := work(ctrl); err != nil {
		ctrl.ScheduleRollback(err)
		if onError != nil {
			onError(err)
		}
		return ctrl.Execute(ctx)
	}
	if !ctrl.HasTransactionRollbackError() {
		ctrl.ScheduleCommit()
	}
	return ctrl.Execute(ctx)
}
