package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/sportsmeet/listing-chat/internal/domain"
	"github.com/sportsmeet/listing-chat/internal/membership"
	"github.com/sportsmeet/listing-chat/pkg/log"
	"github.com/sportsmeet/listing-chat/pkg/response"
)

const (
	headerUserID = "X-User-ID"
	ctxUserKey   = "current_user"
)

// Identity resolves the user forwarded by the marketplace gateway. The
// gateway authenticates upstream; this core trusts the forwarded
// identity header and loads display fields from the membership
// provider.
func Identity(members membership.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(headerUserID)
		if userID == "" {
			response.Unauthorized(c, "missing identity")
			c.Abort()
			return
		}

		user, err := members.GetUser(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, membership.ErrUserNotFound) {
				response.Unauthorized(c, "unknown user")
			} else {
				l := log.Ctx(c.Request.Context())
				l.Error().Err(err).Msg("identity lookup failed")
				response.InternalError(c, "identity lookup failed")
			}
			c.Abort()
			return
		}

		c.Set(ctxUserKey, user)
		c.Set(log.FieldUserID, user.ID)
		c.Next()
	}
}

// CurrentUser extracts the resolved user from the Gin context.
func CurrentUser(c *gin.Context) *domain.User {
	if v, ok := c.Get(ctxUserKey); ok {
		if user, ok := v.(*domain.User); ok {
			return user
		}
	}
	return nil
}
