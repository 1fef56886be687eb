package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs
// within a context. Handlers and workers enrich the context once; every
// slog call below that point carries the workspace and connection identity
// without repeating the attributes.
type LogFields struct {
	WorkspaceID  *int64  // workspace the operation targets
	ConnectionID *string // client connection identifier
	DisplayName  *string // principal acting on the workspace
	EventKind    *string // event kind being appended or delivered
	Component    string  // component name, e.g. "collab.bus" or "collab.gateway"
}

// WithLogFields enriches context with structured log fields. Multiple calls
// merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := mergeFields(GetLogFields(ctx), fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context, or empty LogFields if
// none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, updated LogFields) LogFields {
	result := existing

	if updated.WorkspaceID != nil {
		result.WorkspaceID = updated.WorkspaceID
	}
	if updated.ConnectionID != nil {
		result.ConnectionID = updated.ConnectionID
	}
	if updated.DisplayName != nil {
		result.DisplayName = updated.DisplayName
	}
	if updated.EventKind != nil {
		result.EventKind = updated.EventKind
	}
	if updated.Component != "" {
		result.Component = updated.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value, for setting LogFields
// inline.
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if
// truncated. Useful for logging note contents and chat text.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
