package main

import (
	"fmt"
	"slices"
	"strings"
)

// flagValue represents a flag name and its current value for validation.
type flagValue struct {
	name  string
	value string
}

// requireOneOf returns an error unless the flag holds one of the allowed values.
func requireOneOf(f flagValue, allowed ...string) error {
	if slices.Contains(allowed, f.value) {
		return nil
	}
	return fmt.Errorf("invalid %s %q: must be one of %s", f.name, f.value, strings.Join(allowed, ", "))
}
