// Package gin adapts the paywall to gin-gonic applications. It is a thin
// translation shim: all protocol logic lives in the core and http packages.
package gin

import (
	"github.com/gin-gonic/gin"

	x402 "github.com/x402-foundation/x402-core"
	x402http "github.com/x402-foundation/x402-core/http"
)

// PaymentMiddleware returns a gin handler enforcing payment on the
// configured routes.
//
//	router.Use(ginx402.PaymentMiddleware(server, x402http.RoutesConfig{
//	    "GET /api/report": {Accepts: ..., Price: "$0.10"},
//	}))
func PaymentMiddleware(server *x402.ResourceServer, routes x402http.RoutesConfig, opts ...x402http.PaywallOption) gin.HandlerFunc {
	paywall := x402http.NewPaywall(server, routes, opts...)
	return func(c *gin.Context) {
		if !paywall.Check(c.Writer, c.Request) {
			c.Abort()
			return
		}
		c.Next()
	}
}
