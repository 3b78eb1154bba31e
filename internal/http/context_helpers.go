package httpx

import (
	"context"

	domainauth "github.com/dialcoach/partner-api/internal/domain/auth"
	"github.com/dialcoach/partner-api/internal/domain/model"
)

// sessionKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type sessionKey struct{}

// partnerKey carries the authenticated partner descriptor.
type partnerKey struct{}

// SetSessionInContext returns a child context that carries the given session.
// If session is nil, the original ctx is returned unchanged.
func SetSessionInContext(ctx context.Context, session *domainauth.Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetUserSessionFromContext returns the user session from context and a boolean indicating presence.
func GetUserSessionFromContext(ctx context.Context) (*domainauth.Session, bool) {
	if session, ok := ctx.Value(sessionKey{}).(*domainauth.Session); ok && session != nil {
		return session, true
	}
	return nil, false
}

// partnerHolder lets middleware that runs before the auth gate (the request
// logger) observe the partner identified later in the chain.
type partnerHolder struct {
	pc *model.PartnerContext
}

type partnerHolderKey struct{}

// withPartnerHolder seeds an empty holder into the context.
func withPartnerHolder(ctx context.Context) (context.Context, *partnerHolder) {
	h := &partnerHolder{}
	return context.WithValue(ctx, partnerHolderKey{}, h), h
}

// SetPartnerInContext returns a child context carrying the authenticated
// partner. If pc is nil, the original ctx is returned unchanged. A holder
// seeded upstream is filled so outer middleware sees the partner too.
func SetPartnerInContext(ctx context.Context, pc *model.PartnerContext) context.Context {
	if pc == nil {
		return ctx
	}
	if h, ok := ctx.Value(partnerHolderKey{}).(*partnerHolder); ok {
		h.pc = pc
	}
	return context.WithValue(ctx, partnerKey{}, pc)
}

// PartnerFromContext returns the authenticated partner from context and a
// boolean indicating presence. Handlers behind the partner gate can rely on
// presence; the request log middleware must not.
func PartnerFromContext(ctx context.Context) (*model.PartnerContext, bool) {
	if pc, ok := ctx.Value(partnerKey{}).(*model.PartnerContext); ok && pc != nil {
		return pc, true
	}
	return nil, false
}
