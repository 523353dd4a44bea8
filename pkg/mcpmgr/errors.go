package mcpmgr

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Resolution failure reasons. A *ResolutionError always unwraps to exactly one
// of these, so callers can branch with errors.Is.
var (
	// ErrNotFound reports that no connected server exposes the capability.
	ErrNotFound = errors.New("capability not found")
	// ErrAmbiguous reports that more than one server exposes the capability
	// and the request carried no server qualifier.
	ErrAmbiguous = errors.New("capability exists on multiple servers")
	// ErrServerNotFound reports that the qualifier names a server that is not
	// connected.
	ErrServerNotFound = errors.New("server not connected")
	// ErrInconclusive is only produced in DiscoveryFailuresStrict mode, when a
	// failed discovery query could have changed the outcome.
	ErrInconclusive = errors.New("discovery incomplete")
)

// ConnectError reports that a server could not be established. It is logged
// and the server is left out of the registry.
type ConnectError struct {
	Server    string
	Transport ConfigTransport
	Err       error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("mcpmgr: connect %q (%s): %v", e.Server, e.Transport, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ConfigError reports a malformed server descriptor. Only the offending entry
// is skipped.
type ConfigError struct {
	Server string
	// Source names the document the entry came from, when known.
	Source string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("mcpmgr: invalid config for %q in %s: %v", e.Server, e.Source, e.Err)
	}
	return fmt.Sprintf("mcpmgr: invalid config for %q: %v", e.Server, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ResolutionError is returned when a spec does not resolve to exactly one
// server. No action has been performed when it is returned.
type ResolutionError struct {
	Kind   string
	Spec   Spec
	Reason error
	// Candidates lists, sorted, the servers exposing the capability when
	// Reason is ErrAmbiguous.
	Candidates []string
	Warnings   []DiscoveryWarning
}

func (e *ResolutionError) Error() string {
	switch {
	case errors.Is(e.Reason, ErrServerNotFound):
		return fmt.Sprintf("%s %q: server %q not connected", e.Kind, e.Spec.Name, e.Spec.Server)
	case errors.Is(e.Reason, ErrAmbiguous):
		return fmt.Sprintf("%s %q exists in multiple servers: %s", e.Kind, e.Spec.Name, strings.Join(e.Candidates, ", "))
	case errors.Is(e.Reason, ErrInconclusive):
		return fmt.Sprintf("%s %q: discovery failed on %s", e.Kind, e.Spec.Name, strings.Join(warningServers(e.Warnings), ", "))
	default:
		return fmt.Sprintf("%s %q not found", e.Kind, e.Spec)
	}
}

func (e *ResolutionError) Unwrap() error { return e.Reason }

// InvocationError reports that the channel to the resolved server failed while
// the call was in flight. Other sessions are unaffected.
type InvocationError struct {
	Server string
	Kind   string
	Name   string
	Err    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("mcpmgr: %s %q on %q: %v", e.Kind, e.Name, e.Server, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

func resolutionFailure(kind string, spec Spec, reason error, candidates []string, warnings []DiscoveryWarning) error {
	err := error(&ResolutionError{
		Kind:       kind,
		Spec:       spec,
		Reason:     reason,
		Candidates: candidates,
		Warnings:   warnings,
	})
	if errors.Is(reason, ErrAmbiguous) {
		err = errors.WithHintf(err, "specify the server: <server>/%s", spec.Name)
	}
	return err
}

func warningServers(warnings []DiscoveryWarning) []string {
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, w.Server)
	}
	return out
}
