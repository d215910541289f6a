package middleware

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"instantclip/internal/domain"
	resp "instantclip/internal/transport/http/response"
)

const keyCurrentUser = "currentUser"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// Protect 要求 Authorization: Bearer <token>，校验通过后把用户放进 gin.Context
func Protect(a Authenticator, errs resp.Errors) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			errs.Abort(c, domain.Unauthenticated("you are not logged in, please log in to get access"))
			return
		}
		u, err := a.Authenticate(c.Request.Context(), tok)
		if err != nil {
			errs.Abort(c, err)
			return
		}
		c.Set(keyCurrentUser, u)
		c.Next()
	}
}

// RequireRole 必须挂在 Protect 之后
func RequireRole(errs resp.Errors, roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			errs.Abort(c, domain.Internal("role gate without session", nil))
			return
		}
		if !u.Role.Valid() {
			// 库里出现未知角色属于数据问题，不当作第四种角色处理
			errs.Abort(c, domain.Internal(fmt.Sprintf("user %s has unknown role %q", u.ID, u.Role), nil))
			return
		}
		if !slices.Contains(roles, u.Role) {
			errs.Abort(c, domain.Forbidden("you do not have permission to perform this action"))
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(keyCurrentUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok && u != nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
