// Package slices has small generic slice helpers the standard library
// doesn't cover.
package slices

func Map[T, U any](in []T, f func(T) U) []U {
	out := make([]U, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}
