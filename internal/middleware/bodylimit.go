package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BodyLimit caps the request body at maxBytes by wrapping it in
// http.MaxBytesReader. Nothing is rejected up front: a body that exceeds
// the limit fails at the Read call that crosses it, and whichever reader
// hits that error (the Secret middleware's JSON bind, or the render
// handler's body read) answers 400.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
