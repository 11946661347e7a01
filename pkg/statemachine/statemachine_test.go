package statemachine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subledger/pkg/statemachine"
)

type state string

func (s state) Name() string { return string(s) }

const (
	Pending   state = "pending"
	Active    state = "active"
	Failed    state = "failed"
	Cancelled state = "cancelled"

	Pay    = statemachine.StringEvent("pay")
	Fail   = statemachine.StringEvent("fail")
	Cancel = statemachine.StringEvent("cancel")
)

func TestTable_Fire(t *testing.T) {
	t.Parallel()

	table := statemachine.MustNew(
		statemachine.WithTransition(Pending, Active, Pay),
		statemachine.WithTransition(Failed, Active, Pay),
		statemachine.WithTransition(Pending, Failed, Fail),
		statemachine.WithFanIn([]statemachine.State{Pending, Active, Failed}, Cancelled, Cancel),
	)
	ctx := context.Background()

	t.Run("defined transition returns target", func(t *testing.T) {
		t.Parallel()
		next, err := table.Fire(ctx, Pending, Pay, nil)
		require.NoError(t, err)
		assert.Equal(t, Active, next)
	})

	t.Run("fan-in from every source", func(t *testing.T) {
		t.Parallel()
		for _, from := range []statemachine.State{Pending, Active, Failed} {
			next, err := table.Fire(ctx, from, Cancel, nil)
			require.NoError(t, err)
			assert.Equal(t, Cancelled, next)
		}
	})

	t.Run("undefined transition", func(t *testing.T) {
		t.Parallel()
		_, err := table.Fire(ctx, Cancelled, Pay, nil)
		require.ErrorIs(t, err, statemachine.ErrUndefined)
		assert.Contains(t, err.Error(), "pay from cancelled")
		assert.False(t, table.CanFire(ctx, Cancelled, Pay, nil))
	})

	t.Run("nil inputs", func(t *testing.T) {
		t.Parallel()
		_, err := table.Fire(ctx, Pending, nil, nil)
		assert.ErrorIs(t, err, statemachine.ErrInvalidTransition)
		_, err = table.Fire(ctx, nil, Pay, nil)
		assert.ErrorIs(t, err, statemachine.ErrInvalidTransition)
		assert.False(t, table.CanFire(ctx, nil, Pay, nil))
	})

	t.Run("states are not mutated", func(t *testing.T) {
		t.Parallel()
		for range 3 {
			next, err := table.Fire(ctx, Pending, Fail, nil)
			require.NoError(t, err)
			assert.Equal(t, Failed, next)
		}
	})
}

func TestTable_Guards(t *testing.T) {
	t.Parallel()

	isPaid := func(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
		paid, _ := data.(bool)
		return paid
	}
	table := statemachine.MustNew(
		statemachine.WithTransition(Pending, Active, Pay, statemachine.WithGuard(isPaid)),
		statemachine.WithTransition(Pending, Failed, Pay),
	)
	ctx := context.Background()

	next, err := table.Fire(ctx, Pending, Pay, true)
	require.NoError(t, err)
	assert.Equal(t, Active, next, "first transition with passing guards wins")

	next, err = table.Fire(ctx, Pending, Pay, false)
	require.NoError(t, err)
	assert.Equal(t, Failed, next, "falls through to the unguarded transition")

	strict := statemachine.MustNew(
		statemachine.WithFanIn([]statemachine.State{Pending, Failed}, Active, Pay,
			statemachine.WithGuard(isPaid),
			statemachine.WithGuard(nil),
		),
	)
	_, err = strict.Fire(ctx, Failed, Pay, false)
	require.ErrorIs(t, err, statemachine.ErrRejected)
	assert.False(t, strict.CanFire(ctx, Pending, Pay, false))
	assert.True(t, strict.CanFire(ctx, Pending, Pay, true))
}

func TestTable_Events(t *testing.T) {
	t.Parallel()

	table := statemachine.MustNew(
		statemachine.WithTransition(Pending, Failed, Fail),
		statemachine.WithTransition(Pending, Active, Pay),
		statemachine.WithTransition(Pending, Cancelled, Cancel),
	)

	names := make([]string, 0, 3)
	for _, e := range table.Events(Pending) {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"cancel", "fail", "pay"}, names)
	assert.Empty(t, table.Events(Cancelled))
	assert.Nil(t, table.Events(nil))
}

func TestNew_InvalidTransition(t *testing.T) {
	t.Parallel()

	_, err := statemachine.New(statemachine.WithTransition(nil, Active, Pay))
	require.ErrorIs(t, err, statemachine.ErrInvalidTransition)

	_, err = statemachine.New(statemachine.WithFanIn([]statemachine.State{Pending, nil}, Active, Pay))
	require.ErrorIs(t, err, statemachine.ErrInvalidTransition)

	assert.Panics(t, func() {
		statemachine.MustNew(statemachine.WithTransition(Pending, nil, Pay))
	})
}
