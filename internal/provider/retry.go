package provider

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lair-ai/lair/internal/logging"
)

const (
	retryInitialInterval = time.Second
	retryMaxInterval     = 30 * time.Second
)

// Retrying wraps a Client with bounded exponential backoff for transport
// errors. Protocol errors pass through immediately.
type Retrying struct {
	inner           Client
	maxRetries      uint64
	initialInterval time.Duration
}

// WithRetries wraps client so Complete retries transient failures up to
// maxRetries times.
func WithRetries(client Client, maxRetries int) *Retrying {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Retrying{
		inner:           client,
		maxRetries:      uint64(maxRetries),
		initialInterval: retryInitialInterval,
	}
}

// Complete calls the wrapped client, retrying transport errors with
// exponential backoff and jitter.
func (r *Retrying) Complete(ctx context.Context, req *Request) (*Response, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = retryMaxInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, r.maxRetries), ctx)

	var resp *Response
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var callErr error
		resp, callErr = r.inner.Complete(ctx, req)
		if callErr == nil {
			return nil
		}
		var transport *TransportError
		if errors.As(callErr, &transport) {
			logging.Warn().
				Err(callErr).
				Int("attempt", attempt).
				Msg("completion transport error, will retry")
			return callErr
		}
		return backoff.Permanent(callErr)
	}, policy)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ListModels delegates without retrying; model listing is advisory.
func (r *Retrying) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return r.inner.ListModels(ctx)
}
