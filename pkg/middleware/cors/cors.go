package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	allowHeaders = "Authorization, Content-Type, X-Request-ID"
	// Browsers need Content-Disposition exposed to pick up the filename on
	// export downloads.
	exposeHeaders = "Content-Disposition, X-Request-ID"
)

// New returns a CORS middleware restricted to the configured origins. An
// empty list allows any origin, which is only sensible in development.
func New(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[normalize(origin)] = struct{}{}
	}

	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Set("Vary", "Origin")

		origin := c.GetHeader("Origin")
		switch {
		case origin != "":
			if _, ok := allowed[normalize(origin)]; ok || allowAll {
				header.Set("Access-Control-Allow-Origin", origin)
				header.Set("Access-Control-Allow-Credentials", "true")
			}
		case allowAll:
			header.Set("Access-Control-Allow-Origin", "*")
		}

		if c.Request.Method == http.MethodOptions {
			header.Set("Access-Control-Allow-Methods", allowMethods)
			header.Set("Access-Control-Allow-Headers", allowHeaders)
			header.Set("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		header.Set("Access-Control-Expose-Headers", exposeHeaders)
		c.Next()
	}
}

func normalize(origin string) string {
	return strings.ToLower(strings.TrimRight(origin, "/"))
}
