package runtime

import "sync"

// The native backend is process-wide: independent model handles share
// one backend lifecycle. It is initialized when the user count rises
// from zero and freed when it returns to zero, exactly once per cycle.
var backend = backendState{initFn: nativeBackendInit, freeFn: nativeBackendFree}

type backendState struct {
	mu     sync.Mutex
	users  int
	initFn func()
	freeFn func()
}

func acquireBackend() {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.users == 0 {
		backend.initFn()
	}
	backend.users++
}

func releaseBackend() {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.users == 0 {
		return
	}
	backend.users--
	if backend.users == 0 {
		backend.freeFn()
	}
}
