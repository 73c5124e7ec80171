package transfer

import (
	"sync"
	"time"
)

// One worker per process. The HTTP layer holds no worker state of its own;
// it talks to this instance.
var (
	globalMu     sync.RWMutex
	globalWorker *Worker
)

// SetGlobalWorker installs the process-wide worker instance.
func SetGlobalWorker(w *Worker) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalWorker = w
}

// GetGlobalWorker returns the process-wide worker, or nil before wiring.
func GetGlobalWorker() *Worker {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalWorker
}

// ResetGlobalWorker stops and clears the process-wide worker. Test isolation
// hook.
func ResetGlobalWorker() {
	globalMu.Lock()
	w := globalWorker
	globalWorker = nil
	globalMu.Unlock()

	if w != nil {
		w.Stop(true, 5*time.Second)
	}
}
