//go:build debug

package frame

// violation panics on contract violations in debug builds.
func violation(err error) error {
	panic(err)
}
