package httpapi

import (
	"context"

	"powchallenge/internal/challenge"
	"powchallenge/internal/site"
)

type contextKey int

const (
	siteContextKey contextKey = iota
	challengeContextKey
)

func withSite(ctx context.Context, s site.Site) context.Context {
	return context.WithValue(ctx, siteContextKey, s)
}

func siteFromContext(ctx context.Context) (site.Site, bool) {
	s, ok := ctx.Value(siteContextKey).(site.Site)
	return s, ok
}

func withChallenge(ctx context.Context, c challenge.Challenge) context.Context {
	return context.WithValue(ctx, challengeContextKey, c)
}

func challengeFromContext(ctx context.Context) (challenge.Challenge, bool) {
	c, ok := ctx.Value(challengeContextKey).(challenge.Challenge)
	return c, ok
}
