package connector

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey int

const connIDKey ctxKey = iota

// withConnID tags ctx with a fresh correlation ID for one accepted/dialed
// connection, mirroring the request_id convention in the pack's
// Nirmitee-tech-headless-ehr-fhir logging middleware.
func withConnID(ctx context.Context) context.Context {
	return context.WithValue(ctx, connIDKey, uuid.NewString())
}

// ConnID returns the correlation ID stashed in ctx by the connector, or ""
// if ctx carries none (e.g. in tests that build a bare context).
func ConnID(ctx context.Context) string {
	id, _ := ctx.Value(connIDKey).(string)
	return id
}
