//go:build !llama

package runtime

// No-CGO stub compiled when the 'llama' build tag is NOT set, keeping
// default builds and CI CGO-free. The real bridge lives in llama.go
// (tagged 'llama'). The stub refuses to load rather than mock anything.

func nativeBackendInit() {}
func nativeBackendFree() {}

type handle struct{}

func newHandle(Config) (*handle, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}

func (h *handle) close() {}

func (h *handle) run(string, *CancelFlag, func([]byte) bool) error {
	return ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
