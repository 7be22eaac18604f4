// Package ginlimit expõe o ratelimit.Limiter como middleware do gin.
package ginlimit

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ratelimit-gateway/middleware/ratelimit"
)

// Middleware aplica l a cada request do gin.
//
//	r := gin.New()
//	r.Use(ginlimit.Middleware(l))
//
// Rejeições são escritas com ErrorResponse e abortam a cadeia; falhas internas
// abortam com 500.
func Middleware(l *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := l.CheckLimit(c.Request)
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		if !res.Allowed {
			resp, err := l.ErrorResponse(c.Request, res)
			if err != nil {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			l.WriteResponse(c.Writer, resp)
			c.Abort()
			return
		}

		// headers antes do handler: depois do primeiro Write eles não valem mais
		l.AddHeaders(c.Writer.Header(), res)
		c.Next()
	}
}
