package session

import (
	"fmt"

	"github.com/sishi44/locator-ros-bridge/protocol"
)

// AuthenticationError reports rejected credentials. Fatal to startup.
type AuthenticationError struct {
	User   string
	Reason string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("session: login rejected for %v: %v", e.User, e.Reason)
}

// IncompatiblePeerError reports a failed compatibility gate: a
// required module is missing or carries an incompatible version.
// Running against an unverified protocol surface is disallowed, so
// this error aborts startup.
type IncompatiblePeerError struct {
	Module   string
	Required protocol.ModuleVersion
	Actual   protocol.ModuleVersion
	Missing  bool
}

func (e *IncompatiblePeerError) Error() string {
	if e.Missing {
		return fmt.Sprintf("session: required locator module %v not found", e.Module)
	}

	return fmt.Sprintf("session: module %v requires version %v, locator has %v",
		e.Module, e.Required, e.Actual)
}

// TransportError reports that the session connection could not be used
// at all. Surfaced to the caller, never retried automatically.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("session: %v: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// CallError carries a peer-reported application error for one call.
type CallError struct {
	Op      string
	Code    int
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("session: %v: peer error %d: %v", e.Op, e.Code, e.Message)
}
