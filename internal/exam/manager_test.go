package exam

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mind-engage/mindengage-academy/internal/errs"
	"github.com/mind-engage/mindengage-academy/internal/rbac"
)

func TestManagerBindsSessionsToActor(t *testing.T) {
	repo := newMemRepo([]int{1, 1}, []int{0, 2}, 50)
	mock := clock.NewMock()
	m := NewManager(repo, Options{Clock: mock, Logger: zaptest.NewLogger(t)}, time.Minute)
	t.Cleanup(m.Close)
	ctx := context.Background()

	id, snap, err := m.Create(ctx, alice, "course-1")
	require.NoError(t, err)
	assert.Equal(t, id, snap.ID)
	assert.Equal(t, StateReady, snap.State)

	for _, other := range []rbac.Actor{rbac.Student{AccountID: "bob"}, rbac.Instructor{AccountID: "alice"}, rbac.Anonymous{}} {
		_, err := m.Snapshot(other, id)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	}

	_, err = m.Start(alice, id)
	require.NoError(t, err)
	_, err = m.SelectAnswer(alice, id, 0, 0)
	require.NoError(t, err)
	snap, err = m.SelectAnswer(alice, id, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, snap.Answers)

	res, err := m.Submit(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Score)

	require.NoError(t, m.Discard(alice, id))
	assert.Zero(t, m.Len())
	assert.ErrorIs(t, m.Discard(alice, id), errs.ErrNotFound)
}

func TestManagerCreateFailureRegistersNothing(t *testing.T) {
	repo := newMemRepo([]int{1}, []int{0}, 50)
	m := NewManager(repo, Options{Clock: clock.NewMock()}, time.Minute)
	t.Cleanup(m.Close)

	_, _, err := m.Create(context.Background(), rbac.Student{AccountID: "bob"}, "course-1")
	assert.ErrorIs(t, err, errs.ErrAuthorizationDenied)
	assert.Zero(t, m.Len())
}

func TestManagerSweep(t *testing.T) {
	repo := newMemRepo([]int{1}, []int{0}, 50)
	repo.exam.DurationMinutes = 10
	mock := clock.NewMock()
	m := NewManager(repo, Options{Clock: mock}, time.Minute)
	t.Cleanup(m.Close)
	ctx := context.Background()

	idle, _, err := m.Create(ctx, alice, "course-1")
	require.NoError(t, err)
	running, _, err := m.Create(ctx, alice, "course-1")
	require.NoError(t, err)
	_, err = m.Start(alice, running)
	require.NoError(t, err)
	done, _, err := m.Create(ctx, alice, "course-1")
	require.NoError(t, err)
	_, err = m.Start(alice, done)
	require.NoError(t, err)
	_, err = m.Submit(ctx, alice, done)
	require.NoError(t, err)

	assert.Zero(t, m.Sweep(), "nothing is idle yet")

	// The running session receives at most 120 of its 600 ticks and stays
	// in progress.
	mock.Set(mock.Now().Add(2 * time.Minute))
	assert.Equal(t, 2, m.Sweep())
	assert.Equal(t, 1, m.Len())

	_, err = m.Get(alice, idle)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = m.Get(alice, done)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = m.Get(alice, running)
	assert.NoError(t, err)
}
