// Package errors names error types for metric tags.
package errors

import (
	goerrors "errors"
	"reflect"
	"strings"
)

// Classify returns a normalized type name for err, such as "net_operror" or
// "redis_error", suitable for a low-cardinality metric tag. Wrapped errors are
// unwrapped to the innermost cause; joined errors follow their first branch.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	err = innermost(err)

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.String() == "" {
		return "unknown"
	}
	return strings.ReplaceAll(strings.ToLower(t.String()), ".", "_")
}

func innermost(err error) error {
	for {
		switch u := err.(type) { //nolint:errorlint // walking the chain by hand
		case interface{ Unwrap() []error }:
			errs := u.Unwrap()
			if len(errs) == 0 || errs[0] == nil {
				return err
			}
			err = errs[0]
		default:
			next := goerrors.Unwrap(err)
			if next == nil {
				return err
			}
			err = next
		}
	}
}
