package httpapi

import (
	"context"
)

// serverBaseCtx is canceled on process shutdown so in-flight generate
// handlers stop relaying. Defaults to Background until the serve
// command installs its own.
var serverBaseCtx = context.Background()

// SetBaseContext installs the process-level base context joined into
// every generate request. A nil ctx restores the default.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts derives a context that ends when either parent does,
// covering both client disconnect and server shutdown. The cancel func
// must be called when the handler returns to release the watcher.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-a.Done():
			cancel()
		case <-b.Done():
			cancel()
		}
	}()
	return ctx, cancel
}
