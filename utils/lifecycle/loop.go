package lifecycle

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/ugparu/mmstream/utils/logger"
)

// step runs one Step call, converting a panic into an error.
func step[T AsyncInstance](instance T, log *logger.Logger, stopChan <-chan struct{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf(instance, "Panic detected! Recovering from: %v", r)
			log.Errorf(instance, "%s", debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return instance.Step(stopChan)
}

// run drives instance until it breaks. With failSafe set, step errors and
// panics are logged and the loop continues; otherwise the first error ends it.
// The returned error is nil for a regular break.
func run[T AsyncInstance](instance T, log *logger.Logger, stopChan <-chan struct{}, failSafe bool) error {
	log.Debug(instance, "Entering main loop")
	defer log.Debug(instance, "Leaving main loop")

	for {
		err := step(instance, log, stopChan)
		if err == nil {
			continue
		}
		var breakErr *BreakError
		if errors.As(err, &breakErr) {
			return nil
		}
		log.Warningf(instance, "Detected error: %s", err.Error())
		if !failSafe {
			return err
		}
		select {
		case <-stopChan:
			return nil
		default:
		}
	}
}
