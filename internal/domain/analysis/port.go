package analysis

import "context"

// Client port: one attempt against the external model, returning its raw text
// payload. Implementations classify provider failures into the sentinel
// errors of this package.
type Client interface {
	Analyze(ctx context.Context, reports []Report) (string, error)
}
