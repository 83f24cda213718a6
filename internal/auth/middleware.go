package auth

import (
	"context"

	"github.com/gin-gonic/gin"

	"archive/internal/apperr"
	"archive/pkg/models"
)

const CtxUserKey = "auth_user"

const (
	msgNoToken      = "Not authorized, no token"
	msgTokenFailed  = "Not authorized, token failed or expired."
	msgUserNotFound = "Not authorized, user not found in database."
)

type UserFinder interface {
	FindUser(ctx context.Context, id string) (*models.User, error)
}

// Middleware rejects requests without a valid session token and stores the
// resolved user under CtxUserKey. It does no role checks.
func Middleware(tokens TokenService, users UserFinder, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := TokenFromRequest(c.Request, cookieName)
		if raw == "" {
			apperr.Respond(c, apperr.Unauthorized(msgNoToken))
			return
		}

		userID, err := tokens.Verify(raw)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		u, err := users.FindUser(c.Request.Context(), userID)
		if err != nil {
			apperr.Respond(c, apperr.Internal("Failed to resolve user.", err))
			return
		}
		if u == nil {
			apperr.Respond(c, apperr.Unauthorized(msgUserNotFound))
			return
		}

		c.Set(CtxUserKey, u)
		c.Next()
	}
}

// CurrentUser returns the user stored by Middleware, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(CtxUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}
