package srv

import "context"

// funcService implements Service interface over plain functions.
type funcService struct {
	start    func(ctx context.Context) error
	shutdown func(ctx context.Context) error
}

func (f *funcService) Start(ctx context.Context) error {
	if f.start != nil {
		return f.start(ctx)
	}
	return nil
}

func (f *funcService) Shutdown(ctx context.Context) error {
	if f.shutdown != nil {
		return f.shutdown(ctx)
	}
	return nil
}

// NewCleanup wraps a close function that runs on shutdown only.
func NewCleanup(fn func() error) Service {
	return &funcService{shutdown: func(context.Context) error {
		if fn == nil {
			return nil
		}
		return fn()
	}}
}

// NewFunc builds a Service from start and shutdown hooks; either may be nil.
func NewFunc(start, shutdown func(ctx context.Context) error) Service {
	return &funcService{start: start, shutdown: shutdown}
}
