package emit

// Emitter receives observability events from workflow execution.
//
// Implementations must be safe for concurrent use: racing branches emit
// from separate goroutines. Emit must not block workflow progress and
// must not panic; backend failures are to be swallowed or logged
// internally.
type Emitter interface {
	Emit(event Event)
}
