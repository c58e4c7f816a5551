// Package invariant provides contract assertions for the post-processor.
//
// Violations are programming errors, never bad input: malformed APT or
// configuration is reported through returned errors, while a broken
// contract between packages panics here.
package invariant

import (
	"fmt"
	"math"
	"reflect"
	"runtime"
)

// Precondition checks an input contract at function entry.
// Panics with PRECONDITION VIOLATION if condition is false.
//
// Example:
//
//	func NewSequence(address string, start, step int) *Sequence {
//	    invariant.Precondition(step != 0, "sequence step must not be zero")
//	    // ...
//	}
func Precondition(condition bool, format string, args ...any) {
	if !condition {
		fail("PRECONDITION", format, args...)
	}
}

// Postcondition checks an output contract before function return.
func Postcondition(condition bool, format string, args ...any) {
	if !condition {
		fail("POSTCONDITION", format, args...)
	}
}

// Invariant checks internal consistency, for example that the lexer
// advanced its line counter or that a register index matches its name.
func Invariant(condition bool, format string, args ...any) {
	if !condition {
		fail("INVARIANT", format, args...)
	}
}

// NotNil panics if value is nil, including typed nils such as (*T)(nil).
func NotNil(value any, name string) {
	if isNilValue(value) {
		fail("PRECONDITION", "%s must not be nil", name)
	}
}

func isNilValue(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return v.IsNil()
	default:
		return false
	}
}

// Finite panics if value is NaN or infinite. Register values and
// formatted numbers must always be finite.
func Finite(value float64, name string) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		fail("PRECONDITION", "%s must be finite, got %v", name, value)
	}
}

// ExpectNoError panics if err is not nil. Use it for operations that
// cannot fail with valid inputs, such as encoding into a bytes.Buffer.
func ExpectNoError(err error, msg string) {
	if err != nil {
		fail("POSTCONDITION", "%s must not fail: %v", msg, err)
	}
}

// fail panics with the violation kind and the caller's file:line.
func fail(kind, format string, args ...any) {
	pc := make([]uintptr, 10)
	n := runtime.Callers(3, pc)
	frames := runtime.CallersFrames(pc[:n])

	msg := fmt.Sprintf("%s VIOLATION: "+format, append([]any{kind}, args...)...)
	if frame, ok := frames.Next(); ok {
		msg += fmt.Sprintf("\n  at %s:%d", frame.File, frame.Line)
	}
	panic(msg)
}
