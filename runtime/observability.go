package runtime

import "sync"

// DispatchObservation captures one tool dispatch outcome.
type DispatchObservation struct {
	App        string
	Tool       string
	CallID     string
	DurationMS int64
	Success    bool
	ErrorKind  string
}

// CompileObservation captures one bundle compilation outcome. The app
// layer reports it when the tool set is assembled.
type CompileObservation struct {
	App        string
	Service    string
	Tools      int
	Messages   int
	DurationMS int64
	Success    bool
	ErrorKind  string
}

// Observer receives dispatch-level observability events.
type Observer interface {
	ObserveDispatch(observation DispatchObservation)
	ObserveCompile(observation CompileObservation)
}

type noopObserver struct{}

func (noopObserver) ObserveDispatch(DispatchObservation) {}
func (noopObserver) ObserveCompile(CompileObservation)   {}

var (
	observerMu     sync.RWMutex
	activeObserver Observer = noopObserver{}
)

// SetObserver sets the process-wide dispatch observer.
func SetObserver(observer Observer) {
	observerMu.Lock()
	defer observerMu.Unlock()
	if observer == nil {
		activeObserver = noopObserver{}
		return
	}
	activeObserver = observer
}

// ObserveCompile reports a compilation outcome to the active observer.
func ObserveCompile(observation CompileObservation) {
	observerMu.RLock()
	observer := activeObserver
	observerMu.RUnlock()
	observer.ObserveCompile(observation)
}

func emitDispatchObservation(observation DispatchObservation) {
	observerMu.RLock()
	observer := activeObserver
	observerMu.RUnlock()
	observer.ObserveDispatch(observation)
}
