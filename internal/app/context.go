package app

import "context"

type contextKey struct{}

// WithApp stores a in ctx for cobra subcommands.
func WithApp(ctx context.Context, a *App) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// FromContext returns the App stored by WithApp.
func FromContext(ctx context.Context) (*App, error) {
	if ctx == nil {
		return nil, ErrNotInitialized
	}
	a, ok := ctx.Value(contextKey{}).(*App)
	if !ok || a == nil {
		return nil, ErrNotInitialized
	}
	return a, nil
}
