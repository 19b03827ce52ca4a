// Package service holds the viewer's result pipeline: the form, the
// backend client and the session that feeds responses into the map view.
package service

import (
	"context"

	"github.com/globo/viewer/internal/domain"
)

// Backend performs the simplify and count calls. Precision and dates are
// forwarded verbatim; the backend validates them.
type Backend interface {
	Simplify(ctx context.Context, precision string, body []byte) (*domain.Document, error)
	Count(ctx context.Context, precision, start, end string, body []byte) (*domain.Document, error)
}
