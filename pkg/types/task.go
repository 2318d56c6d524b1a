package types

import "context"

type taskKey struct{ owner any }

// WithTask marks ctx as belonging to the goroutine run by owner. Components
// hand this context to everything they call so a later Wait can tell it is
// being invoked from inside the task it would wait on.
func WithTask(ctx context.Context, owner any) context.Context {
	return context.WithValue(ctx, taskKey{owner}, true)
}

// InTask reports whether ctx was derived from the context of owner's task
func InTask(ctx context.Context, owner any) bool {
	if ctx == nil || owner == nil {
		return false
	}
	v, _ := ctx.Value(taskKey{owner}).(bool)
	return v
}
