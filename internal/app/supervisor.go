package app

import (
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

// newSupervisor builds the root of the service tree. The HTTP server and the
// job scheduler are children; a crash in one restarts only that child.
func newSupervisor(log *logger.Logger, shutdownTimeout time.Duration) *suture.Supervisor {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	hookLog := log.With("component", "Supervisor")
	return suture.New("bookmatch", suture.Spec{
		EventHook: func(ev suture.Event) {
			kv := make([]any, 0, 2*len(ev.Map()))
			for k, v := range ev.Map() {
				kv = append(kv, k, v)
			}
			switch ev.Type() {
			case suture.EventTypeResume:
				hookLog.Info(ev.String(), kv...)
			case suture.EventTypeServicePanic, suture.EventTypeStopTimeout:
				hookLog.Error(ev.String(), kv...)
			default:
				hookLog.Warn(ev.String(), kv...)
			}
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          shutdownTimeout,
	})
}
