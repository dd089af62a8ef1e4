// Package runtimex contains helpers for conditions that indicate
// programming errors rather than runtime failures.
package runtimex

import "fmt"

// PanicOnError panics with message and err if err is not nil.
func PanicOnError(err error, message string) {
	if err != nil {
		panic(fmt.Errorf("%s: %w", message, err))
	}
}

// Assert panics with message if assertion is false.
func Assert(assertion bool, message string) {
	if !assertion {
		panic(message)
	}
}
