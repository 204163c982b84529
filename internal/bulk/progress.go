package bulk

import (
	"fmt"

	"github.com/pratik-mahalle/panelbot/internal/pkg/logger"
)

// ProgressSink receives a counters snapshot for the current admin after
// every batch. Errors are logged and otherwise ignored.
type ProgressSink interface {
	OnProgress(admin string, c Counters) error
}

// ProgressFunc adapts a function to ProgressSink
type ProgressFunc func(admin string, c Counters) error

// OnProgress calls f
func (f ProgressFunc) OnProgress(admin string, c Counters) error {
	return f(admin, c)
}

func notify(log *logger.Logger, sink ProgressSink, admin string, c Counters) {
	if sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(map[string]interface{}{
				"admin": admin,
				"panic": fmt.Sprint(r),
			}).Warn("Progress sink panicked")
		}
	}()
	if err := sink.OnProgress(admin, c); err != nil {
		log.With("admin", admin).WarnWithErr(err, "Progress sink failed")
	}
}
