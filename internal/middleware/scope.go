package middleware

import (
	"net/http"
	"strings"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/models"
	"github.com/gin-gonic/gin"
)

// RequireScope is a middleware that checks the admitted token holds every
// given scope. It must run after OAuth2Auth.
func RequireScope(scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := AccessTokenFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewOAuth2Error(models.ErrInvalidToken, "request is not authenticated"))
			return
		}

		if !token.HasScope(scopes...) {
			required := strings.Join(scopes, " ")
			c.Header("WWW-Authenticate", `Bearer realm="api", error="insufficient_scope", scope="`+required+`"`)
			c.AbortWithStatusJSON(http.StatusForbidden, models.NewOAuth2Error(models.ErrInsufficientScope,
				"token lacks the required scope: "+required))
			return
		}

		c.Next()
	}
}
