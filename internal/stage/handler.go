package stage

import "context"

// Handler is one step of a pipeline run.
type Handler interface {
	Name() string
	Execute(context.Context) error
}

// Func adapts a function to Handler.
type Func struct {
	StageName string
	Fn        func(context.Context) error
}

func (f Func) Name() string { return f.StageName }

func (f Func) Execute(ctx context.Context) error {
	if f.Fn == nil {
		return nil
	}
	return f.Fn(ctx)
}
