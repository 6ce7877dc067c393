// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package riftkind defines the error taxonomy shared across Rift's core
// packages. Callers compare against Kind, not Go error identity, so the
// same taxonomy works whether an error originated in predicate compilation,
// script execution, or the proxy client.
package riftkind

import "fmt"

// Kind is one of the error categories from the admission/request taxonomy.
type Kind int

const (
	// Internal is an unexpected failure with no more specific category.
	Internal Kind = iota
	// InvalidConfig is an admission-time configuration error.
	InvalidConfig
	// PortConflict means the requested port is already bound by a live imposter.
	PortConflict
	// TlsError covers certificate/key loading and handshake failures.
	TlsError
	// PredicateMalformed covers a bad regex, JSONPath, or XPath at admission time.
	PredicateMalformed
	// TemplateMissing means a strict template referenced an unknown binding.
	TemplateMissing
	// ScriptCompile means a script failed to compile for its dialect.
	ScriptCompile
	// ScriptRuntime means a compiled script raised an error during invocation.
	ScriptRuntime
	// ScriptTimeout means a script exceeded its CPU deadline.
	ScriptTimeout
	// ProxyUpstream covers connect/timeout/TLS/protocol failures reaching the upstream.
	ProxyUpstream
	// FlowStoreUnavailable means a flow-store backend could not service an operation.
	FlowStoreUnavailable
)

// String renders the Mountebank-parity label used in admin error envelopes.
func (k Kind) String() string {
	switch k {
	case InvalidConfig:
		return "bad data"
	case PortConflict:
		return "port conflict"
	case PredicateMalformed:
		return "bad data"
	case TlsError:
		return "bad data"
	default:
		return "internal error"
	}
}

// HTTPStatus maps a Kind to the admin API status code from §7.
func (k Kind) HTTPStatus() int {
	switch k {
	case InvalidConfig, PredicateMalformed:
		return 400
	case PortConflict:
		return 409
	case TlsError, Internal:
		return 500
	default:
		return 500
	}
}

// Error wraps an underlying cause with a Kind for taxonomy-based handling.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error with the given kind, message, and underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Of returns the Kind of err if it (or something it wraps) is a *Error,
// otherwise Internal.
func Of(err error) Kind {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind
	}
	return Internal
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
