// Package inference adapts language model backends to providers.InferenceProvider.
package inference

import (
	"context"
	"errors"
	"net"
	"net/http"
	"syscall"

	"github.com/zatekoja/poidiscovery/internal/domain/providers"
)

// systemPrompt frames every discovery prompt for the model
const systemPrompt = "You are a concise in-car travel assistant. Follow the requested answer format exactly and never add commentary outside it."

// unavailable reports whether a failure means the model cannot serve at all,
// as opposed to a bad request.
func unavailable(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var netErr *net.OpError
	return errors.As(err, &netErr) && netErr.Op == "dial"
}

func unavailableStatus(code int) bool {
	return code == http.StatusNotFound || code == http.StatusServiceUnavailable || code == http.StatusBadGateway
}

// markUnavailable wraps err with providers.ErrModelUnavailable so callers can
// tell an unloaded model from other failures.
func markUnavailable(err error) error {
	return errors.Join(providers.ErrModelUnavailable, err)
}

// contextDone returns ctx.Err() once ctx is finished
func contextDone(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
