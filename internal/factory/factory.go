// Package factory builds plugins from constructor functions.
package factory

import "fmt"

// Build calls f with env. A panic in f, or a nil value with no error, is
// returned as an error naming kind.
func Build[E, T any](f func(E) (T, error), env E, kind string) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v, err = zero, fmt.Errorf("factory panicked: %v", r)
		}
	}()
	v, err = f(env)
	if err == nil && any(v) == nil {
		err = fmt.Errorf("factory returned no %s", kind)
	}
	return v, err
}
