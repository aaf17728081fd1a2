// Package service implements tracker's entity-integrity rules on top of
// the store: scoped key uniqueness for issues and epics, the symmetric
// relation graph, and the membership permission gate.
//
// Every mutation follows the same contract: check existence first (a
// missing parent or target is NotFound), delegate the write to the store,
// then refetch and return the canonical record rather than trusting the
// write's return value. The store's schema constraints are the
// authoritative backstop for uniqueness; the lookups here exist to fail
// fast with a precise message.
package service

import (
	"fmt"
	"strings"
)

// normalizeScope maps blank scopes to nil so "no assigned scope" has a
// single representation. The store's uniqueness index relies on '' never
// being stored as a scope value.
func normalizeScope(scope *string) *string {
	if scope == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*scope)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// sameScope compares two scopes by identity, with nil its own group.
func sameScope(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// scopeLabel names a scope for error messages.
func scopeLabel(scope *string) string {
	if scope == nil {
		return "no assigned scope"
	}
	return fmt.Sprintf("scope %q", *scope)
}
