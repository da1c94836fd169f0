package stream

import "context"

// sinkKey uses an empty struct for a zero-allocation context key.
type sinkKey struct{}

// ContextWithSink stores the active output sink in the context. The
// handler binds the sink per request; stream-writing tools retrieve it
// to emit data frames during execution.
func ContextWithSink(ctx context.Context, sink Sink) context.Context {
	return context.WithValue(ctx, sinkKey{}, sink)
}

// SinkFromContext retrieves the active sink. Returns nil if not set,
// allowing non-streaming code paths to run tools without a sink.
func SinkFromContext(ctx context.Context) Sink {
	sink, _ := ctx.Value(sinkKey{}).(Sink)
	return sink
}
