// Package tenantctx provides utilities for managing tenant context throughout request lifecycle
package tenantctx

import (
	"context"
	"errors"
)

// contextKey is a private type used for context keys to prevent collisions
type contextKey string

// tenantIDKey is the context key for storing the tenant ID
const tenantIDKey contextKey = "tenant_id"

// ErrNoTenant is returned when no tenant ID is found in context
var ErrNoTenant = errors.New("no tenant ID in context")

// WithTenantID returns a new context with the tenant ID set
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// GetTenantID retrieves the tenant ID from the context
// Returns an empty string if not present
func GetTenantID(ctx context.Context) string {
	if tenantID, ok := ctx.Value(tenantIDKey).(string); ok {
		return tenantID
	}
	return ""
}

// MustGetTenantID retrieves the tenant ID from the context or returns an error
func MustGetTenantID(ctx context.Context) (string, error) {
	tenantID := GetTenantID(ctx)
	if tenantID == "" {
		return "", ErrNoTenant
	}
	return tenantID, nil
}
