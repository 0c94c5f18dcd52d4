package util

import "cmp"

// Pointer simply returns a pointer to the supplied value
func Pointer[T any](v T) *T {
	return &v
}

// Or returns v unless it is the zero value, in which case it returns fallback
func Or[T comparable](v, fallback T) T {
	return cmp.Or(v, fallback)
}
