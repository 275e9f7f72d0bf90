package jobqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// A stop/start cycle must terminate cleanly each time: the schedule worker
// watches the stop channel across select iterations, so Stop has to leave the
// closed channel in place until Start replaces it.
func TestManagerStopRestart(t *testing.T) {
	host, port, password := resolveTestRedis(t)
	configureTestCache(host, port, password)
	resetJobQueueRedis(t)
	t.Cleanup(func() { resetJobQueueRedis(t) })

	m := &Manager{
		queue:  NewQueue(1, &Dependencies{}),
		stopCh: make(chan struct{}),
	}

	for cycle := 0; cycle < 2; cycle++ {
		m.Start()
		require.True(t, m.IsRunning())

		done := make(chan struct{})
		go func() {
			m.Stop()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("manager stop hung on cycle %d", cycle)
		}
		require.False(t, m.IsRunning())
	}
}
