package httpapi

import (
	"context"

	"github.com/dmitrijs2005/payslips/internal/server/models"
)

type ctxKey string

const identityKey ctxKey = "identity"

// WithIdentity stores the verified caller in ctx.
func WithIdentity(ctx context.Context, who models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, who)
}

// IdentityFrom returns the caller placed in ctx by Authenticate.
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	who, ok := ctx.Value(identityKey).(models.Identity)
	return who, ok
}
