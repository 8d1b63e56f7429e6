package procurement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"procureagent"

	"github.com/cenkalti/backoff/v5"
)

// API is everything the negotiation flow needs from the remote procurement service.
type API interface {
	procureagent.VendorDirectory
	procureagent.VendorDetailer
	procureagent.Messenger
}

// Retrying wraps an API with per-attempt timeouts and exponential backoff. Client errors
// (4xx) and undecodable responses are not retried.
type Retrying struct {
	api         API
	maxAttempts uint
	timeout     time.Duration
	newBackOff  func() backoff.BackOff
}

type RetryOption func(*Retrying)

func WithMaxAttempts(n uint) RetryOption {
	return func(r *Retrying) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func WithAttemptTimeout(d time.Duration) RetryOption {
	return func(r *Retrying) { r.timeout = d }
}

func WithBackOff(newBackOff func() backoff.BackOff) RetryOption {
	return func(r *Retrying) { r.newBackOff = newBackOff }
}

func NewRetrying(api API, opts ...RetryOption) *Retrying {
	r := &Retrying{
		api:         api,
		maxAttempts: 3,
		timeout:     30 * time.Second,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Retrying) ListVendors(ctx context.Context, teamID string) ([]procureagent.Vendor, error) {
	return retry(ctx, r, "list vendors", func(ctx context.Context) ([]procureagent.Vendor, error) {
		return r.api.ListVendors(ctx, teamID)
	})
}

func (r *Retrying) GetVendor(ctx context.Context, vendorID string) (procureagent.Vendor, error) {
	return retry(ctx, r, "get vendor", func(ctx context.Context) (procureagent.Vendor, error) {
		return r.api.GetVendor(ctx, vendorID)
	})
}

func (r *Retrying) CreateConversation(ctx context.Context, vendorID, title string) (string, error) {
	return retry(ctx, r, "create conversation", func(ctx context.Context) (string, error) {
		return r.api.CreateConversation(ctx, vendorID, title)
	})
}

func (r *Retrying) SendMessage(ctx context.Context, conversationID, text string) (string, error) {
	return retry(ctx, r, "send message", func(ctx context.Context) (string, error) {
		return r.api.SendMessage(ctx, conversationID, text)
	})
}

func retry[T any](ctx context.Context, r *Retrying, op string, fn func(context.Context) (T, error)) (T, error) {
	attempt := 0
	operation := func() (T, error) {
		attempt++
		actx := ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		res, err := fn(actx)
		if err != nil && permanent(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(r.maxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			slog.Warn("PROCUREMENT_API: Retrying after error", "operation", op, "attempt", attempt, "max_attempts", r.maxAttempts, "wait", wait, "error", err)
		}),
	)
}

func permanent(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Permanent()
	}
	var de *DecodeError
	return errors.As(err, &de)
}
