package optional

// Optional is a value that may be absent.
// Weak references hand out their referent as an Optional.
type Optional[T any] struct {
	value T
	isSet bool
}

// IsSet returns true if the optional value is set
func (o Optional[T]) IsSet() bool {
	return o.isSet
}

// Set sets the optional value
func (o *Optional[T]) Set(v T) {
	o.value = v
	o.isSet = true
}

// Unset clears the value so the optional stops holding on to it.
func (o *Optional[T]) Unset() {
	var zero T
	o.value = zero
	o.isSet = false
}

// Get returns the optional value and a boolean indicating if the value is set
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.isSet
}

// GetOr returns the optional value or a default value if the value is not set
func (o Optional[T]) GetOr(def T) T {
	if o.isSet {
		return o.value
	}
	return def
}

// GetOrElse is GetOr with a lazily computed default.
func (o Optional[T]) GetOrElse(def func() T) T {
	if o.isSet {
		return o.value
	}
	return def()
}

// IfSet calls fn with the value when it is set and reports whether it did.
func (o Optional[T]) IfSet(fn func(T)) bool {
	if o.isSet {
		fn(o.value)
	}
	return o.isSet
}

// Unwrap returns the optional value or panics if the value is not set
func (o Optional[T]) Unwrap() T {
	if o.isSet {
		return o.value
	}
	panic("Optional value is not set")
}

// Some creates an optional value with the given value
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, isSet: true}
}

// None creates an optional value with no value set
func None[T any]() Optional[T] {
	return Optional[T]{isSet: false}
}

// Map applies fn to a set value.
func Map[A, B any](a Optional[A], fn func(A) B) (out Optional[B]) {
	if a.isSet {
		out.Set(fn(a.value))
	}
	return out
}
