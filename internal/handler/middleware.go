package handler

import (
	"net/http"
	"strings"

	"github.com/itskevin-zz/testframe/internal/config"

	"github.com/gin-gonic/gin"
)

const (
	emailKey    = "userEmail"
	tabIDHeader = "X-Tab-ID"
)

// Identity consumes the verified email injected by the fronting identity
// provider and restricts it to the configured domains. The provider itself is
// a black box; by the time a request reaches this service the email has
// already been authenticated upstream.
func Identity(cfg *config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		email := strings.TrimSpace(c.GetHeader(cfg.EmailHeader))
		if email == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authenticated email"})
			return
		}
		if len(cfg.AllowedDomains) > 0 && !domainAllowed(email, cfg.AllowedDomains) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "email domain not allowed"})
			return
		}
		c.Set(emailKey, email)
		c.Next()
	}
}

func domainAllowed(email string, domains []string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	for _, d := range domains {
		if domain == strings.ToLower(d) {
			return true
		}
	}
	return false
}

// userEmail returns the authenticated email set by Identity.
func userEmail(c *gin.Context) string {
	return c.GetString(emailKey)
}

// tabID returns the caller tab's identity header, "" when absent (a fresh
// server-side identity is minted in that case).
func tabID(c *gin.Context) string {
	return c.GetHeader(tabIDHeader)
}
