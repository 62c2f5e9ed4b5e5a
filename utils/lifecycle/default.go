package lifecycle

import (
	"sync"

	"github.com/ugparu/mmstream/utils/logger"
)

type defaultLifecycleManager[T Instance] struct {
	instance             T
	log                  *logger.Logger
	startOnce, closeOnce *sync.Once
	closeChan            chan struct{}
}

// NewDefaultManager returns a manager for instances without a loop.
func NewDefaultManager[T Instance](instance T, log *logger.Logger) Manager[T] {
	return &defaultLifecycleManager[T]{
		instance:  instance,
		log:       log,
		closeChan: make(chan struct{}),
		startOnce: &sync.Once{},
		closeOnce: &sync.Once{},
	}
}

func (ssc *defaultLifecycleManager[T]) Start(startFunc func(T) error) (err error) {
	select {
	case <-ssc.closeChan:
		return &StartedAfterCloseError{}
	default:
		err = &StartedAlreadyError{}
	}
	ssc.startOnce.Do(func() {
		ssc.log.Debugf(ssc.instance, "Starting default")
		err = startFunc(ssc.instance)
	})
	return err
}

func (ssc *defaultLifecycleManager[T]) Close() {
	ssc.closeOnce.Do(func() {
		ssc.instance.Close_()
		close(ssc.closeChan)
	})
}
