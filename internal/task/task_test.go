package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/visagate/visagate/logger"
)

func newTestLogger() *logger.MockLogger {
	mockLogger := logger.NewMockLogger()
	mockLogger.On("Debug", mock.Anything, mock.Anything).Return()
	mockLogger.On("Error", mock.Anything, mock.Anything).Return()
	return mockLogger
}

func TestManager_Start(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	taskMgr := NewManager(ctx, newTestLogger())

	taskFunc := func() bool {
		time.Sleep(time.Millisecond)
		return true
	}

	require.NoError(t, taskMgr.Start("testTask", taskFunc))

	// Allow some time for the goroutine to start
	time.Sleep(100 * time.Millisecond)

	// Verify that the task is running
	assert.Equal(t, 1, taskMgr.TaskCount())

	// Cancel the context to stop the task
	cancel()

	// Allow some time for the goroutine to stop
	time.Sleep(100 * time.Millisecond)

	// Verify that the task has stopped
	assert.Equal(t, 0, taskMgr.TaskCount())
}

func TestManager_StartWithCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	taskMgr := NewManager(ctx, newTestLogger())

	canceled := make(chan struct{})
	taskFunc := func() bool {
		time.Sleep(time.Millisecond)
		return true
	}
	taskCancelFunc := func() {
		close(canceled)
	}

	require.NoError(t, taskMgr.StartWithCancel("testTask", taskFunc, taskCancelFunc))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, taskMgr.TaskCount())

	taskMgr.Stop()
	taskMgr.Wait()

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Error("cancel func was not invoked")
	}
	assert.Equal(t, 0, taskMgr.TaskCount())
}

func TestManager_TaskReturnsFalse(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	taskMgr := NewManager(ctx, newTestLogger())

	require.NoError(t, taskMgr.Start("oneShot", func() bool { return false }))

	// Allow some time for the goroutine to stop on its own
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 0, taskMgr.TaskCount())
}

func TestManager_StartInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	taskMgr := NewManager(ctx, newTestLogger())

	taskFunc := func() bool {
		return true
	}

	ticker, err := taskMgr.StartInterval("testInterval", taskFunc, 10*time.Millisecond, true)
	require.NoError(t, err)
	require.NotNil(t, ticker)

	// Allow some time for the interval task to run
	time.Sleep(100 * time.Millisecond)

	// Verify that the task is running
	assert.Equal(t, 1, taskMgr.TaskCount())

	// duplicate name is rejected while the first interval is alive
	_, err = taskMgr.StartInterval("testInterval", taskFunc, 10*time.Millisecond, false)
	assert.Error(t, err)

	cancel()
	ticker.Stop()

	// Allow some time for the goroutine to stop
	time.Sleep(100 * time.Millisecond)

	// Verify that the task has stopped
	assert.Equal(t, 0, taskMgr.TaskCount())
}

func TestManager_StartInterval_InvalidInterval(t *testing.T) {
	taskMgr := NewManager(context.Background(), newTestLogger())

	_, err := taskMgr.StartInterval("bad", func() bool { return true }, 0, false)
	assert.Error(t, err)
}

func TestManager_StopInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	taskMgr := NewManager(ctx, newTestLogger())

	_, err := taskMgr.StartInterval("stats", func() bool { return true }, 10*time.Millisecond, false)
	require.NoError(t, err)

	assert.NoError(t, taskMgr.StopInterval("stats"))
	assert.Error(t, taskMgr.StopInterval("stats"), "second stop should report not found")
}

func TestManager_PanicRecovery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mockLogger := newTestLogger()
	taskMgr := NewManager(ctx, mockLogger)

	require.NoError(t, taskMgr.Start("panicky", func() bool {
		panic("boom")
	}))

	// Allow the panic to be recovered and the task to exit
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 0, taskMgr.TaskCount())
}

func TestManager_StartAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	taskMgr := NewManager(ctx, newTestLogger())

	taskMgr.Stop()
	err := taskMgr.Start("late", func() bool { return true })
	assert.Error(t, err)

	// Wait recreates the context, so tasks can start again
	taskMgr.Wait()
	require.NoError(t, taskMgr.Start("reborn", func() bool { return false }))
}
