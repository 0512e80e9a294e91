package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/qris_backend/appctx"
)

const CorrelationHeader = "x-correlation-id"

// CorrelationId generates a correlation id once per request and attaches it
// to the request context and the response headers.
func CorrelationId() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader(CorrelationHeader)
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(appctx.SetCorrelationId(c.Request.Context(), cid))
		c.Header(CorrelationHeader, cid)
		c.Next()
	}
}
