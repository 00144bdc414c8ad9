package utils

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

func InitSentry(dsn, environment, version string) error {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          "legalestate@" + version,
		TracesSampleRate: 0.2,
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	return nil
}

// FlushSentry drains buffered events; call it once on shutdown.
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

func CaptureError(err error, context map[string]any) {
	if hub := sentry.CurrentHub(); hub != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			for k, v := range context {
				scope.SetExtra(k, v)
			}
			hub.CaptureException(err)
		})
	}
}
