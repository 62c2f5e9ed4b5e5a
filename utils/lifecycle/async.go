package lifecycle

import (
	"sync"

	"github.com/ugparu/mmstream/utils/logger"
)

type asyncLifecycleManager[T AsyncInstance] struct {
	instance             T
	log                  *logger.Logger
	failSafe             bool
	stopChan, doneChan   chan struct{}
	startOnce, closeOnce *sync.Once
	err                  error
}

// NewAsyncManager returns a manager whose loop stops at the first Step error.
func NewAsyncManager[T AsyncInstance](instance T, log *logger.Logger) AsyncManager[T] {
	return newAsyncManager(instance, log, false)
}

// NewFailSafeAsyncManager returns a manager whose loop survives Step errors
// and panics until it is closed or Step returns a BreakError.
func NewFailSafeAsyncManager[T AsyncInstance](instance T, log *logger.Logger) AsyncManager[T] {
	return newAsyncManager(instance, log, true)
}

func newAsyncManager[T AsyncInstance](instance T, log *logger.Logger, failSafe bool) *asyncLifecycleManager[T] {
	return &asyncLifecycleManager[T]{
		instance:  instance,
		log:       log,
		failSafe:  failSafe,
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
		startOnce: &sync.Once{},
		closeOnce: &sync.Once{},
	}
}

func (ssc *asyncLifecycleManager[T]) Start(startFunc func(T) error) (err error) {
	select {
	case <-ssc.stopChan:
		return &StartedAfterCloseError{}
	default:
		err = &StartedAlreadyError{}
	}
	ssc.startOnce.Do(func() {
		ssc.log.Debugf(ssc.instance, "Starting async")
		if err = startFunc(ssc.instance); err != nil {
			ssc.err = err
			close(ssc.doneChan)
			return
		}
		go func() {
			defer close(ssc.doneChan)
			ssc.err = run(ssc.instance, ssc.log, ssc.stopChan, ssc.failSafe)
		}()
	})
	return err
}

// Close stops the loop, waits for it and releases the instance.
// It must not be called from Step.
func (ssc *asyncLifecycleManager[T]) Close() {
	ssc.closeOnce.Do(func() {
		close(ssc.stopChan)
		ssc.startOnce.Do(func() {
			close(ssc.doneChan)
		})
		<-ssc.doneChan
		ssc.instance.Close_()
	})
}

func (ssc *asyncLifecycleManager[T]) Done() <-chan struct{} {
	return ssc.doneChan
}

func (ssc *asyncLifecycleManager[T]) Err() error {
	select {
	case <-ssc.doneChan:
		return ssc.err
	default:
		return nil
	}
}
