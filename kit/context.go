// Package kit carries request-scoped values across the engine, the journal
// and the MCP surface, and adapts typed endpoints to MCP tools.
package kit

import "context"

type contextKey string

const (
	VisitIDKey   contextKey = "kit_visit_id"
	SessionIDKey contextKey = "kit_session_id"
	OriginKey    contextKey = "kit_origin" // "cli", "mcp", "api"
)

func WithVisitID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, VisitIDKey, id)
}
func GetVisitID(ctx context.Context) string {
	v, _ := ctx.Value(VisitIDKey).(string)
	return v
}

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}
func GetSessionID(ctx context.Context) string {
	v, _ := ctx.Value(SessionIDKey).(string)
	return v
}

func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, OriginKey, origin)
}
func GetOrigin(ctx context.Context) string {
	if v, ok := ctx.Value(OriginKey).(string); ok {
		return v
	}
	return "api"
}
