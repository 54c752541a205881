package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/swipswaps/react-render-server/internal/secret"
)

// secretBody is the minimal shape every secret-guarded route accepts:
// a JSON object carrying the shared secret. /render's body carries
// additional fields the render handler itself decodes; this middleware
// only needs the secret field, peeked via gin's bound JSON cache.
type secretBody struct {
	Secret string `json:"secret"`
}

// Secret guards a route with the shared-secret check (internal/secret).
// On mismatch or load failure it responds 400 with exactly
// {"error": "Missing or invalid secret"}, matching the stable response
// schema scraped by tests.
func Secret(checker *secret.Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body secretBody
		if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid secret"})
			c.Abort()
			return
		}

		if err := checker.Check(body.Secret); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid secret"})
			c.Abort()
			return
		}

		c.Next()
	}
}
