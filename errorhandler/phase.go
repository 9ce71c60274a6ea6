package errorhandler

import (
	"context"
)

// ErrorPhase indicates which step of the task loop failed
type ErrorPhase int

const (
	PhaseUnknown    ErrorPhase = iota // zero value - uninitialized phase
	PhasePoll                         // error returned by the task's Poll
	PhaseProduction                   // error sending a row to the brokers
	PhaseCommit                       // error writing offsets to the offset store
)

func (p ErrorPhase) String() string {
	switch p {
	case PhasePoll:
		return "poll"
	case PhaseProduction:
		return "production"
	case PhaseCommit:
		return "commit"
	default:
		return "unknown"
	}
}

var _ Handler = (*PhaseRouter)(nil)

type PhaseRouter struct {
	handler           Handler
	pollHandler       Handler
	productionHandler Handler
	commitHandler     Handler
}

// NewPhaseRouter routes errors to a handler per phase. A nil phase handler
// falls back to handler, and a nil handler defaults to SilentFail.
func NewPhaseRouter(handler, pollHandler, productionHandler, commitHandler Handler) *PhaseRouter {
	if handler == nil {
		handler = SilentFail()
	}

	return &PhaseRouter{
		handler:           handler,
		pollHandler:       pollHandler,
		productionHandler: productionHandler,
		commitHandler:     commitHandler,
	}
}

func (r *PhaseRouter) Handle(ctx context.Context, ec ErrorContext) Action {
	var h Handler
	switch ec.Phase {
	case PhasePoll:
		h = r.pollHandler
	case PhaseProduction:
		h = r.productionHandler
	case PhaseCommit:
		h = r.commitHandler
	case PhaseUnknown:
	default:
	}

	if h != nil {
		return h.Handle(ctx, ec)
	}
	return r.handler.Handle(ctx, ec)
}
