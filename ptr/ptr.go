// Package ptr has helpers for taking the address of literals.
package ptr

func String(s string) *string {
	return &s
}
