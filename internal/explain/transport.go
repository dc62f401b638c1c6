package explain

import (
	"context"
	"errors"
)

// Transport sends a prompt to a generative text provider.
type Transport interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// TransportError is a failed provider call. QuotaExhausted is set by the
// transport when the provider rejected the call for rate or quota reasons.
type TransportError struct {
	Err            error
	StatusCode     int
	QuotaExhausted bool
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsQuotaExhausted reports whether err (or any error in its chain) is a
// TransportError flagged as quota exhaustion.
func IsQuotaExhausted(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.QuotaExhausted
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f TransportFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
