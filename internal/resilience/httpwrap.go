package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Doer is the subset of http.Client used by the wrapper.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// HTTPClient wraps a Doer with a circuit breaker and a bounded per-call
// timeout. It issues exactly one attempt per call; retry policy belongs to
// the caller. When the breaker is open ErrOpenCircuit is returned unless a
// fallback is configured.
type HTTPClient struct {
	Client   Doer
	Breaker  *Breaker
	Timeout  time.Duration
	Fallback func(context.Context, *http.Request, error) (*http.Response, error)
}

// Do executes the request once. Responses with 5xx status codes count as
// failures toward the breaker but are still returned to the caller.
func (cl HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	ctx := req.Context()
	if cl.Breaker != nil && !cl.Breaker.Allow(ctx) {
		if cl.Fallback != nil {
			return cl.Fallback(ctx, req, ErrOpenCircuit)
		}
		return nil, ErrOpenCircuit
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if cl.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, cl.Timeout)
		defer cancel()
	}

	resp, err := cl.Client.Do(req.WithContext(callCtx))
	if cl.Breaker != nil {
		cl.Breaker.Report(ctx, err == nil && resp.StatusCode < http.StatusInternalServerError)
	}
	if err != nil {
		if cl.Fallback != nil {
			return cl.Fallback(ctx, req, err)
		}
		return nil, err
	}
	return resp, nil
}
