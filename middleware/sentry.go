package middleware

import (
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

// SentryMiddleware opens a transaction per request on a request-scoped hub.
func SentryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sentry.CurrentHub().Client() == nil {
			c.Next()
			return
		}

		hub := sentry.CurrentHub().Clone()
		ctx := sentry.SetHubOnContext(c.Request.Context(), hub)

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		transaction := sentry.StartTransaction(
			ctx,
			c.Request.Method+" "+route,
			sentry.ContinueFromRequest(c.Request),
		)
		defer func() {
			transaction.Status = sentry.HTTPtoSpanStatus(c.Writer.Status())
			transaction.Finish()
		}()

		hub.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetContext("Request", map[string]any{
				"Method":  c.Request.Method,
				"URL":     c.Request.URL.String(),
				"Headers": getSafeHeaders(c.Request.Header),
			})
			scope.SetTag("http.method", c.Request.Method)
			scope.SetTag("http.route", route)
		})

		c.Request = c.Request.WithContext(transaction.Context())
		c.Next()
	}
}

func getSafeHeaders(h http.Header) map[string]any {
	safe := make(map[string]any)
	for k, v := range h {
		if strings.EqualFold(k, "Authorization") || strings.EqualFold(k, "Cookie") {
			safe[k] = "[FILTERED]"
		} else {
			safe[k] = v
		}
	}
	return safe
}
