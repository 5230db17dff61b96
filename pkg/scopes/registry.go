// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package scopes maintains the registry of scope names the server will grant.
package scopes

import (
	"fmt"
	"sync"
)

// Scope pairs a registered scope name with its human-readable description.
type Scope struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ValidationError reports a requested scope that is unknown or not allowed
// for the client. The protocol layer renders it as invalid_scope.
type ValidationError struct {
	Scope string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid scope: %s", e.Scope)
}

// Registry maps scope names to descriptions. It is populated from
// configuration at boot and may be extended at runtime through Define.
// Reads happen on every authorize and token call, so access is guarded
// by an RWMutex.
type Registry struct {
	mu     sync.RWMutex
	scopes map[string]string
}

// NewRegistry creates a registry pre-populated with the given definitions.
func NewRegistry(defs map[string]string) *Registry {
	r := &Registry{scopes: make(map[string]string, len(defs))}
	for name, description := range defs {
		r.scopes[name] = description
	}
	return r
}

// Define registers a batch of scope definitions, overwriting existing names.
func (r *Registry) Define(batch map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, description := range batch {
		r.scopes[name] = description
	}
}

// Registered reports whether the scope name is known to the registry.
func (r *Registry) Registered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.scopes[name]
	return ok
}

// Validate computes the effective scope list for a request. An empty request
// is substituted with defaults. Every resulting name must be registered, and
// when clientAllowed is non-nil, must also appear in it. Input order is
// preserved so responses can echo the request.
func (r *Registry) Validate(requested, clientAllowed, defaults []string) ([]string, error) {
	effective := requested
	if len(effective) == 0 {
		effective = defaults
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(effective))
	for _, name := range effective {
		if _, ok := r.scopes[name]; !ok {
			return nil, &ValidationError{Scope: name}
		}
		if clientAllowed != nil && !contains(clientAllowed, name) {
			return nil, &ValidationError{Scope: name}
		}
		result = append(result, name)
	}

	return result, nil
}

// Describe maps scope names to name/description pairs. Unknown names pass
// through with the description equal to the name; Describe never fails as it
// is used only for display.
func (r *Registry) Describe(names []string) []Scope {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Scope, 0, len(names))
	for _, name := range names {
		description, ok := r.scopes[name]
		if !ok {
			description = name
		}
		result = append(result, Scope{Name: name, Description: description})
	}

	return result
}

// Reset drops all definitions. Permitted only in tests.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scopes = make(map[string]string)
}

func contains(list []string, name string) bool {
	for _, item := range list {
		if item == name {
			return true
		}
	}
	return false
}
