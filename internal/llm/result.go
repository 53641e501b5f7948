package llm

// Result carries the outcome of a call to an external service. A failed call
// still yields a usable Value: the degraded default the caller chose, with
// Fallback set and Err holding the cause.
type Result[T any] struct {
	Value    T
	Fallback bool
	Err      error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fallback wraps a degraded default used because of err.
func Fallback[T any](v T, err error) Result[T] {
	return Result[T]{Value: v, Fallback: true, Err: err}
}
