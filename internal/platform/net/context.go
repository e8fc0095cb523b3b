// Package net provides utilities for working with request contexts
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// ctxKey is an unexported key type for context values
type ctxKey string

const keyViewName ctxKey = "view"

// WithRequest annotates context with common request scoped ids
func WithRequest(ctx context.Context, reqID, view string) context.Context {
	if reqID != "" {
		// set chi RequestID so chimw.GetReqID can retrieve it
		ctx = context.WithValue(ctx, chimw.RequestIDKey, reqID)
	}
	if view != "" {
		ctx = context.WithValue(ctx, keyViewName, view)
	}
	return ctx
}

// RequestID returns the request id on the context if present
func RequestID(ctx context.Context) string {
	if v := chimw.GetReqID(ctx); v != "" {
		return v
	}
	return ""
}

// ViewName returns the queried view name on the context if present
func ViewName(ctx context.Context) string {
	if v, ok := ctx.Value(keyViewName).(string); ok {
		return v
	}
	return ""
}
