package mikrotik

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-routeros/routeros/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenisp/netbill/app/models"
)

// nopConn is a dead transport; good enough for pool accounting, which never
// runs commands over the connections it hands out.
type nopConn struct{}

func (nopConn) Read(p []byte) (int, error)  { return 0, io.EOF }
func (nopConn) Write(p []byte) (int, error) { return len(p), nil }
func (nopConn) Close() error                { return nil }

func fakeDialer(dials *int64) func(*models.Router) (*routeros.Client, error) {
	return func(*models.Router) (*routeros.Client, error) {
		atomic.AddInt64(dials, 1)
		return routeros.NewClient(nopConn{})
	}
}

func testRouter() *models.Router {
	return &models.Router{Name: "lab-rtr", Host: "192.0.2.10", Port: 8728}
}

func TestPoolBoundsConcurrentAcquires(t *testing.T) {
	pool := NewPool(3, time.Second, time.Minute)
	var dials int64
	pool.dialFn = fakeDialer(&dials)

	router := testRouter()
	var inUse, maxInUse int64
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				client, err := pool.Acquire(context.Background(), router)
				if err != nil {
					t.Errorf("acquire failed: %v", err)
					return
				}

				n := atomic.AddInt64(&inUse, 1)
				for {
					cur := atomic.LoadInt64(&maxInUse)
					if n <= cur || atomic.CompareAndSwapInt64(&maxInUse, cur, n) {
						break
					}
				}

				time.Sleep(time.Millisecond)
				atomic.AddInt64(&inUse, -1)
				pool.Release(router, client, false)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&maxInUse), int64(3),
		"more connections outstanding than pool slots")
	// healthy releases park connections for reuse, so the pool never dials
	// past its size either
	assert.LessOrEqual(t, atomic.LoadInt64(&dials), int64(3))
}

func TestPoolReusesIdleConnection(t *testing.T) {
	pool := NewPool(3, time.Second, time.Minute)
	var dials int64
	pool.dialFn = fakeDialer(&dials)
	router := testRouter()

	first, err := pool.Acquire(context.Background(), router)
	require.NoError(t, err)
	pool.Release(router, first, false)

	second, err := pool.Acquire(context.Background(), router)
	require.NoError(t, err)
	pool.Release(router, second, false)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), atomic.LoadInt64(&dials))
}

func TestPoolExpiresStaleIdleConnection(t *testing.T) {
	pool := NewPool(3, time.Second, 10*time.Millisecond)
	var dials int64
	pool.dialFn = fakeDialer(&dials)
	router := testRouter()

	client, err := pool.Acquire(context.Background(), router)
	require.NoError(t, err)
	pool.Release(router, client, false)

	time.Sleep(25 * time.Millisecond)

	fresh, err := pool.Acquire(context.Background(), router)
	require.NoError(t, err)
	pool.Release(router, fresh, false)

	assert.NotSame(t, client, fresh)
	assert.Equal(t, int64(2), atomic.LoadInt64(&dials))
}

func TestPoolDropsBrokenConnection(t *testing.T) {
	pool := NewPool(3, time.Second, time.Minute)
	var dials int64
	pool.dialFn = fakeDialer(&dials)
	router := testRouter()

	client, err := pool.Acquire(context.Background(), router)
	require.NoError(t, err)
	pool.Release(router, client, true)

	fresh, err := pool.Acquire(context.Background(), router)
	require.NoError(t, err)
	pool.Release(router, fresh, false)

	assert.NotSame(t, client, fresh)
	assert.Equal(t, int64(2), atomic.LoadInt64(&dials))
}

func TestPoolFreesSlotOnFailedDial(t *testing.T) {
	pool := NewPool(1, time.Second, time.Minute)
	dialErr := errors.New("dial tcp 192.0.2.10:8728: connection refused")
	var dials int64
	pool.dialFn = func(*models.Router) (*routeros.Client, error) {
		if atomic.AddInt64(&dials, 1) <= 2 {
			return nil, dialErr
		}
		return routeros.NewClient(nopConn{})
	}
	router := testRouter()

	// a failed dial must return the slot; otherwise the single-slot pool
	// would block the next acquire forever
	for i := 0; i < 2; i++ {
		_, err := pool.Acquire(context.Background(), router)
		require.ErrorIs(t, err, dialErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	client, err := pool.Acquire(ctx, router)
	require.NoError(t, err)
	pool.Release(router, client, false)
}

func TestPoolAcquireHonorsContext(t *testing.T) {
	pool := NewPool(1, time.Second, time.Minute)
	var dials int64
	pool.dialFn = fakeDialer(&dials)
	router := testRouter()

	held, err := pool.Acquire(context.Background(), router)
	require.NoError(t, err)
	defer pool.Release(router, held, false)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx, router)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientRetriesExhaustDialFailures(t *testing.T) {
	pool := NewPool(1, time.Second, time.Minute)
	dialErr := errors.New("dial tcp 192.0.2.10:8728: connection refused")
	var dials int64
	pool.dialFn = func(*models.Router) (*routeros.Client, error) {
		atomic.AddInt64(&dials, 1)
		return nil, dialErr
	}

	client := NewAPIClient(pool, 3)
	client.retryDelay = time.Millisecond

	err := client.TestConnection(context.Background(), testRouter())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable after 3 attempts")
	// three dials on a single-slot pool proves each failed dial freed the slot
	assert.Equal(t, int64(3), atomic.LoadInt64(&dials))
}

func TestIsCommandError(t *testing.T) {
	assert.True(t, isCommandError(errors.New("from RouterOS device: no such item")))
	assert.False(t, isCommandError(errors.New("read tcp: connection reset by peer")))
}
