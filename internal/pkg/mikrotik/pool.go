package mikrotik

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-routeros/routeros/v3"
	"github.com/gofiber/fiber/v2/log"

	"github.com/lumenisp/netbill/app/models"
	"github.com/lumenisp/netbill/internal/pkg/security"
)

const (
	DefaultPoolSize    = 3
	DefaultDialTimeout = 5 * time.Second
	DefaultIdleTimeout = 5 * time.Minute
)

// pooledConn wraps a RouterOS API connection with its last-used timestamp so
// stale idle connections can be expired instead of reused.
type pooledConn struct {
	client   *routeros.Client
	lastUsed time.Time
}

// hostPool bounds concurrent connections to a single router. The semaphore
// channel caps issued connections; the mutex guards the idle list.
type hostPool struct {
	sem  chan struct{}
	mu   sync.Mutex
	idle []*pooledConn
}

// Pool is a bounded, per-router connection pool for the RouterOS API. Small
// home-grade routers fall over when too many API sessions open at once, so
// every acquire is gated by a per-router semaphore. The pool is an explicit
// injected object, not package state, so its lifetime is owned by the caller.
type Pool struct {
	mu          sync.Mutex
	hosts       map[string]*hostPool
	size        int
	dialTimeout time.Duration
	idleTimeout time.Duration

	// dialFn opens a new API connection; tests swap it out.
	dialFn func(*models.Router) (*routeros.Client, error)
}

// NewPool creates a connection pool issuing at most size connections per
// router address.
func NewPool(size int, dialTimeout, idleTimeout time.Duration) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	p := &Pool{
		hosts:       make(map[string]*hostPool),
		size:        size,
		dialTimeout: dialTimeout,
		idleTimeout: idleTimeout,
	}
	p.dialFn = p.dial
	return p
}

// NewPoolFromSettings creates a pool sized from the current app settings.
func NewPoolFromSettings(settings *models.AppSettings) *Pool {
	return NewPool(
		settings.GetRouterPoolSize(),
		settings.GetRouterConnectTimeout(),
		settings.GetRouterIdleTimeout(),
	)
}

func (p *Pool) hostPoolFor(address string) *hostPool {
	p.mu.Lock()
	defer p.mu.Unlock()

	hp, ok := p.hosts[address]
	if !ok {
		hp = &hostPool{sem: make(chan struct{}, p.size)}
		p.hosts[address] = hp
	}
	return hp
}

// Acquire returns a connection to the router, dialing a new one if no fresh
// idle connection is available. Blocks until a pool slot frees up or the
// context is cancelled. Every successful Acquire must be paired with Release.
func (p *Pool) Acquire(ctx context.Context, router *models.Router) (*routeros.Client, error) {
	hp := p.hostPoolFor(router.Address())

	select {
	case hp.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Reuse the most recently used idle connection; drop expired ones.
	hp.mu.Lock()
	for len(hp.idle) > 0 {
		pc := hp.idle[len(hp.idle)-1]
		hp.idle = hp.idle[:len(hp.idle)-1]
		if time.Since(pc.lastUsed) < p.idleTimeout {
			hp.mu.Unlock()
			return pc.client, nil
		}
		pc.client.Close()
	}
	hp.mu.Unlock()

	client, err := p.dialFn(router)
	if err != nil {
		<-hp.sem
		return nil, err
	}
	return client, nil
}

// Release returns a connection to the pool. Broken connections are closed
// instead of being parked for reuse; the slot is freed either way.
func (p *Pool) Release(router *models.Router, client *routeros.Client, broken bool) {
	hp := p.hostPoolFor(router.Address())

	if client != nil {
		if broken {
			client.Close()
		} else {
			hp.mu.Lock()
			hp.idle = append(hp.idle, &pooledConn{client: client, lastUsed: time.Now()})
			hp.mu.Unlock()
		}
	}
	<-hp.sem
}

// Close drops all idle connections. In-flight connections are closed by
// their holders on Release.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for addr, hp := range p.hosts {
		hp.mu.Lock()
		for _, pc := range hp.idle {
			pc.client.Close()
		}
		hp.idle = nil
		hp.mu.Unlock()
		log.Debugf("[RouterPool] Closed idle connections for %s", addr)
	}
}

func (p *Pool) dial(router *models.Router) (*routeros.Client, error) {
	password, err := security.DecryptString(router.PasswordEnc)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt router credentials for %s: %w", router.Name, err)
	}

	client, err := routeros.DialTimeout(router.Address(), router.Username, password, p.dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to router %s (%s): %w", router.Name, router.Address(), err)
	}
	return client, nil
}
