package client

import (
	"context"
	"net/http"

	"github.com/rryowa/storefront/internal/models"
)

// tokenForDispatch is the request interceptor's lookup: a replay carries the
// token its refresh cycle released, anything else reads the store now, not
// when the Request was built.
func (c *Client) tokenForDispatch(released string) string {
	if released != "" {
		return released
	}
	return c.store.AccessToken()
}

// attachCredentials sets the bearer header when there is a token. No token is
// not an error here: the endpoint may be public.
func attachCredentials(h http.Header, token string) {
	if token == "" {
		return
	}
	h.Set(models.HeaderAuthorization, models.BearerScheme+" "+token)
}

// interceptResponse passes 2xx/3xx through, turns everything else into an
// *APIError and, for an expired token, refreshes once and replays.
func (c *Client) interceptResponse(ctx context.Context, req Request, sentToken string, resp *Response) (*Response, error) {
	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}

	apiErr := newAPIError(resp.StatusCode, resp.Body)
	if resp.StatusCode != http.StatusUnauthorized || req.SkipRefresh {
		return nil, apiErr
	}
	if req.Retried {
		c.log.Warnw("Replayed request rejected again, not refreshing", "method", req.Method, "path", req.Path)
		return nil, apiErr
	}

	token, err := c.coordinator.Await(ctx, sentToken)
	if err != nil {
		return nil, err
	}

	replay := req.retried()
	replayResp, _, err := c.dispatch(ctx, replay, token)
	if err != nil {
		return nil, err
	}
	return c.interceptResponse(ctx, replay, token, replayResp)
}
