package requestdata

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const userIDKey = "auth_user_id"

// SetUserID stashes the authenticated user on the gin context. Only the auth
// middleware writes it.
func SetUserID(c *gin.Context, userID uuid.UUID) {
	c.Set(userIDKey, userID)
}

// GetUserID reads the authenticated user off the gin context.
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return uuid.Nil, fmt.Errorf("no authenticated user on request")
	}
	id, ok := v.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("invalid user id on request")
	}
	return id, nil
}
