package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/storefront/internal/models"
)

// RefreshFunc exchanges a refresh token for a new access token (and, with
// rotation, a new refresh token).
type RefreshFunc func(ctx context.Context, refreshToken string) (models.TokenRefreshResponse, error)

type refreshResult struct {
	token string
	err   error
}

// pendingRequest is one caller parked on the current refresh cycle. The
// result channel is buffered so release never blocks on a caller that gave up.
type pendingRequest struct {
	ticket uint64
	result chan refreshResult
}

// refreshState is only touched under Coordinator.mu.
// isRefreshing is true iff a refresh call is outstanding; queue is non-empty
// only while isRefreshing is true.
type refreshState struct {
	isRefreshing bool
	queue        []*pendingRequest
}

// Coordinator runs at most one refresh call at a time. Callers that hit an
// expired token while a refresh is outstanding queue up and are released in
// arrival order with the outcome of that single call.
type Coordinator struct {
	mu         sync.Mutex
	state      refreshState
	nextTicket uint64

	refresh       RefreshFunc
	store         TokenStore
	invalidations *Invalidations
	signInURL     string
	timeout       time.Duration
	log           *zap.SugaredLogger
}

func NewCoordinator(
	refresh RefreshFunc,
	store TokenStore,
	invalidations *Invalidations,
	signInURL string,
	timeout time.Duration,
	log *zap.SugaredLogger,
) *Coordinator {
	return &Coordinator{
		refresh:       refresh,
		store:         store,
		invalidations: invalidations,
		signInURL:     signInURL,
		timeout:       timeout,
		log:           log,
	}
}

// Await returns an access token to replay a request that was rejected while
// carrying staleToken.
//
// If a refresh is outstanding the caller joins its queue. If the store already
// holds a different access token (a refresh finished after the request left)
// that token is returned without a new refresh. Otherwise the caller becomes
// the leader and issues the refresh call itself.
func (c *Coordinator) Await(ctx context.Context, staleToken string) (string, error) {
	c.mu.Lock()
	if c.state.isRefreshing {
		p := c.enqueueLocked()
		c.mu.Unlock()
		c.log.Debugw("Waiting for token refresh", "ticket", p.ticket)
		return wait(ctx, p)
	}

	if current := c.store.AccessToken(); current != "" && current != staleToken {
		c.mu.Unlock()
		return current, nil
	}

	c.state.isRefreshing = true
	leader := c.enqueueLocked()
	c.mu.Unlock()

	token, err := c.runRefresh(ctx)
	c.finish(ctx, token, err)

	res := <-leader.result
	return res.token, res.err
}

// Refreshing reports whether a refresh call is outstanding.
func (c *Coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.isRefreshing
}

func (c *Coordinator) enqueueLocked() *pendingRequest {
	c.nextTicket++
	p := &pendingRequest{
		ticket: c.nextTicket,
		result: make(chan refreshResult, 1),
	}
	c.state.queue = append(c.state.queue, p)
	return p
}

func wait(ctx context.Context, p *pendingRequest) (string, error) {
	select {
	case res := <-p.result:
		return res.token, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// runRefresh performs the single refresh call of a cycle. It runs detached from
// the leader's cancellation: the outcome is shared by every queued caller.
func (c *Coordinator) runRefresh(ctx context.Context) (string, error) {
	refreshToken := c.store.RefreshToken()
	if refreshToken == "" {
		return "", &RefreshError{Cause: ErrNoRefreshToken}
	}

	rctx := context.WithoutCancel(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(rctx, c.timeout)
		defer cancel()
	}

	c.log.Debug("Refreshing access token")
	start := time.Now()

	resp, err := c.refresh(rctx, refreshToken)
	if err != nil {
		return "", &RefreshError{Cause: err}
	}
	if resp.Access == "" {
		return "", &RefreshError{Cause: ErrEmptyAccessToken}
	}

	// Without rotation the backend omits the refresh token; keep ours.
	nextRefresh := resp.Refresh
	if nextRefresh == "" {
		nextRefresh = refreshToken
	}
	if err := c.store.Set(rctx, resp.Access, nextRefresh); err != nil {
		c.log.Warnw("Refreshed credentials not persisted", "error", err)
	}

	c.log.Debugw("Access token refreshed", "rotated", resp.Refresh != "", "duration", time.Since(start))
	return resp.Access, nil
}

// finish ends the cycle: on failure credentials are cleared before any waiter
// is released, then the queue is drained in FIFO order and the state returns
// to idle.
func (c *Coordinator) finish(ctx context.Context, token string, err error) {
	if err != nil {
		if clearErr := c.store.Clear(context.WithoutCancel(ctx)); clearErr != nil {
			c.log.Warnw("Credentials not cleared from backend", "error", clearErr)
		}
	}

	c.mu.Lock()
	queue := c.state.queue
	c.state.queue = nil
	c.state.isRefreshing = false
	c.mu.Unlock()

	res := refreshResult{token: token, err: err}
	for _, p := range queue {
		p.result <- res
	}

	if err != nil {
		c.log.Warnw("Token refresh failed, session invalidated", "waiters", len(queue), "error", err)
		c.invalidations.publish(Invalidation{
			SignInURL: c.signInURL,
			Reason:    err,
			At:        time.Now(),
		})
		return
	}
	c.log.Infow("Token refresh released waiters", "waiters", len(queue))
}

// refreshOverHTTP is the default RefreshFunc. It talks to the backend directly,
// outside the interceptor pipeline, so a rejected refresh never recurses.
func (c *Client) refreshOverHTTP(ctx context.Context, refreshToken string) (models.TokenRefreshResponse, error) {
	req, err := NewRequest(http.MethodPost, models.PathTokenRefresh, models.TokenRefreshRequest{Refresh: refreshToken})
	if err != nil {
		return models.TokenRefreshResponse{}, err
	}

	httpReq, err := c.buildHTTPRequest(ctx, req, "")
	if err != nil {
		return models.TokenRefreshResponse{}, err
	}

	resp, err := c.send(httpReq)
	if err != nil {
		return models.TokenRefreshResponse{}, fmt.Errorf("refresh request: %w", err)
	}
	if resp.StatusCode >= 300 {
		return models.TokenRefreshResponse{}, newAPIError(resp.StatusCode, resp.Body)
	}

	var out models.TokenRefreshResponse
	if err := resp.DecodeJSON(&out); err != nil {
		return models.TokenRefreshResponse{}, err
	}
	return out, nil
}
