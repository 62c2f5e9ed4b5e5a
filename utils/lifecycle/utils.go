package lifecycle

// Instance is an object whose resources are released by its manager.
type Instance interface {
	Close_() //nolint:revive // called by the manager only, after the loop has stopped
	String() string
}

// AsyncInstance is driven by repeated Step calls on the manager goroutine.
// Step should return when stopChan is closed.
type AsyncInstance interface {
	Instance
	Step(stopChan <-chan struct{}) error
}

type Manager[T Instance] interface {
	Start(func(T) error) error
	Close()
}

type AsyncManager[T AsyncInstance] interface {
	Manager[T]
	Done() <-chan struct{}
	// Err returns the error that ended the loop, or nil. Valid after Done is closed.
	Err() error
}

// BreakError ends the loop without being reported as a failure.
type BreakError struct{}

func (*BreakError) Error() string {
	return "break"
}

type StartedAlreadyError struct{}

func (*StartedAlreadyError) Error() string {
	return "started already"
}

type StartedAfterCloseError struct{}

func (*StartedAfterCloseError) Error() string {
	return "start after close"
}
