package mikrotik

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-routeros/routeros/v3"
	"github.com/gofiber/fiber/v2/log"

	"github.com/lumenisp/netbill/app/models"
)

// ErrUserNotFound is returned when a PPPoE secret id does not exist on the
// router anymore.
var ErrUserNotFound = errors.New("pppoe user not found on router")

// RouterControlClient is the surface the provisioning and isolation engines
// need from a router. Implementations retry transient transport failures
// internally; callers treat any returned error as "router unreachable after
// retries" and decide whether to retry the whole operation.
type RouterControlClient interface {
	// CreatePPPoEUser adds a PPPoE secret and returns the router-assigned id.
	CreatePPPoEUser(ctx context.Context, router *models.Router, username, password, profile string) (string, error)
	// UpdateUserProfile moves an existing secret to another profile.
	UpdateUserProfile(ctx context.Context, router *models.Router, userID, profile string) error
	// DeleteUser removes a secret permanently.
	DeleteUser(ctx context.Context, router *models.Router, userID string) error
	// DisconnectActiveSession kicks a live PPPoE session so a profile change
	// takes effect immediately instead of on the next reconnect.
	DisconnectActiveSession(ctx context.Context, router *models.Router, username string) error
	// TestConnection verifies the router is reachable and credentials work.
	TestConnection(ctx context.Context, router *models.Router) error
}

// APIClient talks to RouterOS through a shared connection pool. Each command
// is retried up to attempts times with a linear delay; this inner retry layer
// only covers transient transport errors and is distinct from the job-level
// retry the queue applies around whole isolate/restore operations.
type APIClient struct {
	pool       *Pool
	attempts   int
	retryDelay time.Duration
}

// NewAPIClient creates a router client with the given inner retry count.
func NewAPIClient(pool *Pool, attempts int) *APIClient {
	if attempts <= 0 {
		attempts = 3
	}
	return &APIClient{
		pool:       pool,
		attempts:   attempts,
		retryDelay: time.Second,
	}
}

func (c *APIClient) run(ctx context.Context, router *models.Router, sentence ...string) (*routeros.Reply, error) {
	var lastErr error

	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(time.Duration(attempt-1) * c.retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		client, err := c.pool.Acquire(ctx, router)
		if err != nil {
			lastErr = err
			log.Warnf("[Mikrotik] Connect to %s failed (attempt %d/%d): %v", router.Name, attempt, c.attempts, err)
			continue
		}

		reply, err := client.Run(sentence...)
		if err != nil {
			// Command-level errors ("no such item") are not transport
			// failures; the connection is still usable and retrying the
			// same command will not help.
			if isCommandError(err) {
				c.pool.Release(router, client, false)
				return nil, err
			}
			c.pool.Release(router, client, true)
			lastErr = err
			log.Warnf("[Mikrotik] Command on %s failed (attempt %d/%d): %v", router.Name, attempt, c.attempts, err)
			continue
		}

		c.pool.Release(router, client, false)
		return reply, nil
	}

	return nil, fmt.Errorf("router %s unreachable after %d attempts: %w", router.Name, c.attempts, lastErr)
}

// CreatePPPoEUser adds a PPPoE secret and returns its .id.
func (c *APIClient) CreatePPPoEUser(ctx context.Context, router *models.Router, username, password, profile string) (string, error) {
	reply, err := c.run(ctx, router,
		"/ppp/secret/add",
		"=name="+username,
		"=password="+password,
		"=service=pppoe",
		"=profile="+profile,
	)
	if err != nil {
		return "", err
	}

	if id := reply.Done.Map["ret"]; id != "" {
		return id, nil
	}

	// Older RouterOS versions omit ret on add; fall back to a lookup.
	return c.findSecretID(ctx, router, username)
}

// UpdateUserProfile moves the secret to a different PPPoE profile.
func (c *APIClient) UpdateUserProfile(ctx context.Context, router *models.Router, userID, profile string) error {
	_, err := c.run(ctx, router,
		"/ppp/secret/set",
		"=.id="+userID,
		"=profile="+profile,
	)
	return err
}

// DeleteUser removes the secret from the router.
func (c *APIClient) DeleteUser(ctx context.Context, router *models.Router, userID string) error {
	_, err := c.run(ctx, router,
		"/ppp/secret/remove",
		"=.id="+userID,
	)
	return err
}

// DisconnectActiveSession removes any live PPPoE session for the username.
// Missing sessions are fine: the subscriber simply was not online.
func (c *APIClient) DisconnectActiveSession(ctx context.Context, router *models.Router, username string) error {
	reply, err := c.run(ctx, router,
		"/ppp/active/print",
		"?name="+username,
		"=.proplist=.id",
	)
	if err != nil {
		return err
	}

	for _, re := range reply.Re {
		id := re.Map[".id"]
		if id == "" {
			continue
		}
		if _, err := c.run(ctx, router, "/ppp/active/remove", "=.id="+id); err != nil {
			return err
		}
	}
	return nil
}

// TestConnection runs a cheap read-only command against the router.
func (c *APIClient) TestConnection(ctx context.Context, router *models.Router) error {
	_, err := c.run(ctx, router, "/system/identity/print")
	return err
}

func (c *APIClient) findSecretID(ctx context.Context, router *models.Router, username string) (string, error) {
	reply, err := c.run(ctx, router,
		"/ppp/secret/print",
		"?name="+username,
		"=.proplist=.id",
	)
	if err != nil {
		return "", err
	}
	for _, re := range reply.Re {
		if id := re.Map[".id"]; id != "" {
			return id, nil
		}
	}
	return "", ErrUserNotFound
}

func isCommandError(err error) bool {
	var devErr *routeros.DeviceError
	if errors.As(err, &devErr) {
		return true
	}
	// Fallback for wrapped sentence errors surfaced as plain strings.
	return strings.Contains(err.Error(), "no such item")
}
