package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"cms-tags/site"
)

const SiteHeader = "X-Site-ID"

// SiteScope copies the site id chosen by the host application (sent in the
// X-Site-ID header) onto the request context. Requests without the header
// pass through untouched.
func SiteScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(SiteHeader)
		if raw == "" {
			c.Next()
			return
		}

		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			HTTPHelper.SendBadRequest(c, "Invalid site id", HTTPHelper.EmptyJsonMap())
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(site.WithSiteID(c.Request.Context(), uint(id)))
		c.Next()
	}
}
