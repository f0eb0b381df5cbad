// Package site carries the current site (tenant) id through a request context.
// Resolving which site a request belongs to is the host application's job;
// this package only transports the answer.
package site

import (
	"context"
	"errors"
)

var ErrNoSite = errors.New("no current site")

type ctxKey struct{}

// Resolver supplies the current site id for a request.
type Resolver interface {
	CurrentSiteID(ctx context.Context) (uint, error)
}

// WithSiteID returns a copy of ctx carrying the site id.
func WithSiteID(ctx context.Context, id uint) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the site id stored by WithSiteID.
func FromContext(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(ctxKey{}).(uint)
	return id, ok
}

// ContextResolver reads the site id placed on the context by middleware.
type ContextResolver struct{}

func (ContextResolver) CurrentSiteID(ctx context.Context) (uint, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return 0, ErrNoSite
	}
	return id, nil
}

// Fixed always resolves to the same site. Useful for single-site deployments and the CLI.
type Fixed uint

func (f Fixed) CurrentSiteID(context.Context) (uint, error) {
	return uint(f), nil
}
