package persist

type initialKind uint8

const (
	initialAbsent initialKind = iota
	initialLiteral
	initialThunk
)

// Initial is the value a binding starts from when its key is not in the store.
// Build one with Literal, Thunk or Absent.
type Initial[T any] struct {
	kind  initialKind
	value T
	thunk func() T
}

// Literal uses v as the initial value.
func Literal[T any](v T) Initial[T] {
	return Initial[T]{kind: initialLiteral, value: v}
}

// Thunk defers the initial value to fn, called only when it is needed.
// A nil fn behaves like Absent.
func Thunk[T any](fn func() T) Initial[T] {
	if fn == nil {
		return Initial[T]{kind: initialAbsent}
	}
	return Initial[T]{kind: initialThunk, thunk: fn}
}

// Absent starts the binding with no value; its key is removed from the store.
func Absent[T any]() Initial[T] {
	return Initial[T]{kind: initialAbsent}
}

// force resolves the initial value, calling the thunk if there is one.
func (i Initial[T]) force() (T, bool) {
	switch i.kind {
	case initialLiteral:
		return i.value, true
	case initialThunk:
		return i.thunk(), true
	default:
		var zero T
		return zero, false
	}
}
