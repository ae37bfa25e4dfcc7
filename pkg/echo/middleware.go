// Package echo adapts the paywall to echo applications. It is a thin
// translation shim: all protocol logic lives in the core and http packages.
package echo

import (
	"github.com/labstack/echo/v4"

	x402 "github.com/x402-foundation/x402-core"
	x402http "github.com/x402-foundation/x402-core/http"
)

// PaymentMiddleware returns an echo middleware enforcing payment on the
// configured routes.
//
//	e.Use(echox402.PaymentMiddleware(server, x402http.RoutesConfig{
//	    "GET /api/report": {Accepts: ..., Price: "$0.10"},
//	}))
func PaymentMiddleware(server *x402.ResourceServer, routes x402http.RoutesConfig, opts ...x402http.PaywallOption) echo.MiddlewareFunc {
	paywall := x402http.NewPaywall(server, routes, opts...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !paywall.Check(c.Response(), c.Request()) {
				return nil
			}
			return next(c)
		}
	}
}
