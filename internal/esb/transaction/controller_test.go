package transaction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFreshControllerDefaultsToCommit(t *testing.T) {
	ctrl := New()
	var committed bool
	ctrl.Enroll(func(context.Context) error { committed = true; return nil }, nil)

	require.NoError(t, ctrl.Execute(context.Background()))
	require.True(t, committed)
}

func TestScheduleRollbackWinsOverCommit(t *testing.T) {
	ctrl := New()
	var ranCommit, ranRollback bool
	ctrl.Enroll(
		func(context.Context) error { ranCommit = true; return nil },
		func(context.Context) error { ranRollback = true; return nil },
	)

	ctrl.ScheduleCommit()
	ctrl.ScheduleRollback(errors.New("boom"))
	require.NoError(t, ctrl.Execute(context.Background()))

	require.False(t, ranCommit)
	require.True(t, ranRollback)
	require.True(t, ctrl.HasTransactionRollbackError())
	require.EqualError(t, ctrl.RollbackError(), "boom")
}

func TestScheduleCommitIsSticky(t *testing.T) {
	ctrl := New()
	ctrl.ScheduleCommit()
	ctrl.ScheduleCommit()
	require.False(t, ctrl.HasTransactionRollbackError())
}

func TestInterceptCommitsOnSuccess(t *testing.T) {
	var committed bool
	err := Intercept(context.Background(), New(), func(c *Controller) error {
		c.Enroll(func(context.Context) error { committed = true; return nil }, nil)
		return nil
	}, nil)

	require.NoError(t, err)
	require.True(t, committed)
}

func TestInterceptRollsBackAndReportsOnError(t *testing.T) {
	var reported error
	var rolledBack bool
	workErr := errors.New("work failed")

	err := Intercept(context.Background(), New(), func(c *Controller) error {
		c.Enroll(nil, func(context.Context) error { rolledBack = true; return nil })
		return workErr
	}, func(e error) { reported = e })

	require.NoError(t, err, "Execute itself succeeds even though the work failed")
	require.True(t, rolledBack)
	require.Equal(t, workErr, reported)
}

func TestInterceptDoesNotOverrideRollbackScheduledInsideWork(t *testing.T) {
	var ranCommit, ranRollback bool
	err := Intercept(context.Background(), New(), func(c *Controller) error {
		c.Enroll(
			func(context.Context) error { ranCommit = true; return nil },
			func(context.Context) error { ranRollback = true; return nil },
		)
		c.ScheduleRollback(errors.New("already decided"))
		return nil
	}, nil)

	require.NoError(t, err)
	require.False(t, ranCommit)
	require.True(t, ranRollback)
}
