package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Generator abstracts hosted text-generation providers.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Request is a single-turn generation request.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// ServiceError reports a failed call to the remote model: network failure,
// rejected credentials, rate limiting, timeout or an unusable reply. It is
// surfaced to the caller and never retried.
type ServiceError struct {
	Provider   string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *ServiceError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s inference timed out: %v", e.Provider, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s inference failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("%s inference failed: %v", e.Provider, e.Err)
	}
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("empty model response")

// AsServiceError wraps err as a ServiceError for provider unless it already is one.
func AsServiceError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return err
	}
	return &ServiceError{Provider: provider, Timeout: isTimeout(err), Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
