// Package environment applies environment-variable overrides on top of
// values already loaded from a configuration file.
//
// Every helper takes a pointer to the destination field and the variable
// name. The destination is only touched when the variable is set to a
// non-empty, parseable value, so file values and defaults survive a typo in
// the environment. Each helper reports whether it applied an override.
package environment

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// lookup returns the trimmed value of name and whether it is non-empty.
func lookup(name string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	return v, v != ""
}

// String overrides *dst with the value of name.
func String(dst *string, name string) bool {
	v, ok := lookup(name)
	if !ok {
		return false
	}
	*dst = v
	return true
}

// Int overrides *dst with the decimal integer value of name.
func Int(dst *int, name string) bool {
	v, ok := lookup(name)
	if !ok {
		return false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return false
	}
	*dst = n
	return true
}

// Int64 overrides *dst with the decimal 64-bit integer value of name.
func Int64(dst *int64, name string) bool {
	v, ok := lookup(name)
	if !ok {
		return false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return false
	}
	*dst = n
	return true
}

// Bool overrides *dst with the boolean value of name. Recognized values are
// the ones accepted by strconv.ParseBool ("1", "t", "true", "0", "false", ...).
func Bool(dst *bool, name string) bool {
	v, ok := lookup(name)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	*dst = b
	return true
}

// Duration overrides *dst with the time.Duration value of name ("30s", "5m").
func Duration(dst *time.Duration, name string) bool {
	v, ok := lookup(name)
	if !ok {
		return false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return false
	}
	*dst = d
	return true
}
