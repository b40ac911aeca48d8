package auth

import (
	"context"

	"github.com/goliatone/go-auth-providers/middleware/jwtware"
	"github.com/goliatone/go-router"
)

// ValidationListener aliases the jwtware listener so consumers can use auth helpers directly.
type ValidationListener = jwtware.ValidationListener

// ContextEnricherAdapter stores session claims in the standard context so
// handlers can call GetClaims and IdentityFromContext.
func ContextEnricherAdapter(c context.Context, claims jwtware.AuthClaims) context.Context {
	authClaims, ok := claims.(AuthClaims)
	if !ok {
		return c
	}
	return WithClaimsContext(c, authClaims)
}

// RegisterValidationListeners appends listeners to a jwtware.Config
func RegisterValidationListeners(cfg *jwtware.Config, listeners ...ValidationListener) {
	if cfg == nil || len(listeners) == 0 {
		return
	}
	cfg.ValidationListeners = append(cfg.ValidationListeners, listeners...)
}

// RegisteredProviderListener rejects sessions established through a
// provider that is no longer registered.
func RegisteredProviderListener(registry *Registry) ValidationListener {
	return func(_ router.Context, claims jwtware.AuthClaims) error {
		authClaims, ok := claims.(AuthClaims)
		if !ok || registry == nil {
			return nil
		}

		via := authClaims.Provider()
		if via == "" {
			return nil
		}

		if _, err := registry.Get(via); err != nil {
			return withSource(ErrUnableToDecodeSession, err, map[string]any{
				"provider": via,
			})
		}
		return nil
	}
}
