package mcpmgr

import (
	"context"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// Spec names a capability, optionally qualified by the server that exposes
// it ("server/name").
type Spec struct {
	Server string
	Name   string
}

// ParseSpec splits s at the first '/' into server and name. Strings that
// contain "://" are URIs and are never split.
func ParseSpec(s string) Spec {
	if strings.Contains(s, "://") {
		return Spec{Name: s}
	}
	if server, name, ok := strings.Cut(s, "/"); ok {
		return Spec{Server: server, Name: name}
	}
	return Spec{Name: s}
}

// Qualified reports whether the spec names a server.
func (s Spec) Qualified() bool { return s.Server != "" }

func (s Spec) String() string {
	if s.Server == "" {
		return s.Name
	}
	return s.Server + "/" + s.Name
}

// Kind describes one capability family: how to list it from a session and
// which field identifies a record. Tools and prompts are keyed by name,
// resources by URI.
type Kind[T any] struct {
	Name string
	list func(*Session, context.Context) ([]T, error)
	key  func(T) string
}

// Key returns the identifying field of a record.
func (k Kind[T]) Key(item T) string { return k.key(item) }

var (
	Tools = Kind[*mcp.Tool]{
		Name: "tool",
		list: (*Session).Tools,
		key:  func(t *mcp.Tool) string { return t.Name },
	}
	Resources = Kind[*mcp.Resource]{
		Name: "resource",
		list: (*Session).Resources,
		key:  func(r *mcp.Resource) string { return r.URI },
	}
	Prompts = Kind[*mcp.Prompt]{
		Name: "prompt",
		list: (*Session).Prompts,
		key:  func(p *mcp.Prompt) string { return p.Name },
	}
)

// DiscoveryWarning records a server whose list query failed or timed out
// during a fan-out. That server contributed nothing to the result.
type DiscoveryWarning struct {
	Server string
	Err    error
}

// Match is one record found on one server.
type Match[T any] struct {
	Server string
	Record T
}

// Resolution is the unique target a spec resolved to.
type Resolution[T any] struct {
	Session  *Session
	Record   T
	Warnings []DiscoveryWarning
}

// Group holds one server's records in the order the server returned them.
type Group[T any] struct {
	Server string
	Items  []T
	Err    error
}

// Listing is the merged view of one capability kind across all servers.
type Listing[T any] struct {
	Kind string
	// Groups are sorted by server name.
	Groups []Group[T]
	// Conflicts maps each key exposed by more than one server to the sorted
	// servers exposing it.
	Conflicts map[string][]string
	Warnings  []DiscoveryWarning
}

// Conflicting reports whether key is exposed by more than one server.
func (l *Listing[T]) Conflicting(key string) bool {
	_, ok := l.Conflicts[key]
	return ok
}

// Total counts records across all groups.
func (l *Listing[T]) Total() int {
	n := 0
	for _, g := range l.Groups {
		n += len(g.Items)
	}
	return n
}

type discovery[T any] struct {
	session *Session
	items   []T
	err     error
}

// discover runs kind's list query on every session concurrently, each bounded
// by that session's timeout. Results are ordered like sessions.
func discover[T any](ctx context.Context, m *Manager, kind Kind[T], sessions []*Session) []discovery[T] {
	out := make([]discovery[T], len(sessions))
	var wg conc.WaitGroup
	for i, s := range sessions {
		wg.Go(func() {
			qctx, cancel := withTimeout(ctx, m.sessionTimeout(s))
			defer cancel()
			var (
				items []T
				err   error
			)
			if r := panics.Try(func() { items, err = kind.list(s, qctx) }); r != nil {
				err = r.AsError()
			}
			out[i] = discovery[T]{session: s, items: items, err: err}
		})
	}
	wg.Wait()
	return out
}

// targets returns the sessions a spec is searched on: the named server only
// when qualified, every server otherwise.
func targets(m *Manager, kindName string, spec Spec) ([]*Session, error) {
	if !spec.Qualified() {
		return m.sessionsSorted(), nil
	}
	s, ok := m.Session(spec.Server)
	if !ok {
		return nil, resolutionFailure(kindName, spec, ErrServerNotFound, nil, nil)
	}
	return []*Session{s}, nil
}

// find collects every record whose key equals name, plus the failed servers.
func find[T any](ctx context.Context, m *Manager, kind Kind[T], spec Spec) ([]Match[T], []*Session, []DiscoveryWarning, error) {
	sessions, err := targets(m, kind.Name, spec)
	if err != nil {
		return nil, nil, nil, err
	}
	var (
		matches  []Match[T]
		owners   []*Session
		warnings []DiscoveryWarning
	)
	for _, d := range discover(ctx, m, kind, sessions) {
		if d.err != nil {
			warnings = append(warnings, DiscoveryWarning{Server: d.session.Name(), Err: d.err})
			m.logger.Warn("discovery failed", "server", d.session.Name(), "kind", kind.Name, "error", d.err)
			continue
		}
		for _, item := range d.items {
			if isNil(item) || kind.key(item) != spec.Name {
				continue
			}
			matches = append(matches, Match[T]{Server: d.session.Name(), Record: item})
			owners = append(owners, d.session)
			break
		}
	}
	return matches, owners, warnings, nil
}

// Resolve decides which single server a spec refers to. A qualified spec is
// looked up on that server only and never falls back to the others. An
// unqualified spec is searched on every server: no match is ErrNotFound, more
// than one is ErrAmbiguous. Nothing is invoked here.
func Resolve[T any](ctx context.Context, m *Manager, kind Kind[T], spec Spec) (*Resolution[T], error) {
	matches, owners, warnings, err := find(ctx, m, kind, spec)
	if err != nil {
		return nil, err
	}
	strict := m.options.DiscoveryFailures == DiscoveryFailuresStrict && len(warnings) > 0
	switch {
	case len(matches) > 1:
		candidates := make([]string, 0, len(matches))
		for _, mt := range matches {
			candidates = append(candidates, mt.Server)
		}
		sort.Strings(candidates)
		return nil, resolutionFailure(kind.Name, spec, ErrAmbiguous, candidates, warnings)
	case strict:
		return nil, resolutionFailure(kind.Name, spec, ErrInconclusive, nil, warnings)
	case len(matches) == 0:
		return nil, resolutionFailure(kind.Name, spec, ErrNotFound, nil, warnings)
	default:
		return &Resolution[T]{Session: owners[0], Record: matches[0].Record, Warnings: warnings}, nil
	}
}

// Lookup returns every record matching spec, ordered by server. Unlike
// Resolve, several matches are not an error since nothing is acted on.
func Lookup[T any](ctx context.Context, m *Manager, kind Kind[T], spec Spec) ([]Match[T], []DiscoveryWarning, error) {
	matches, _, warnings, err := find(ctx, m, kind, spec)
	if err != nil {
		return nil, nil, err
	}
	if len(matches) == 0 {
		reason := ErrNotFound
		if m.options.DiscoveryFailures == DiscoveryFailuresStrict && len(warnings) > 0 {
			reason = ErrInconclusive
		}
		return nil, warnings, resolutionFailure(kind.Name, spec, reason, nil, warnings)
	}
	return matches, warnings, nil
}

// ListAll lists kind on every server concurrently and merges the results.
// Servers whose query fails keep an empty group carrying the error.
func ListAll[T any](ctx context.Context, m *Manager, kind Kind[T]) *Listing[T] {
	listing := &Listing[T]{Kind: kind.Name, Conflicts: map[string][]string{}}
	owners := map[string][]string{}
	for _, d := range discover(ctx, m, kind, m.sessionsSorted()) {
		name := d.session.Name()
		group := Group[T]{Server: name, Err: d.err}
		if d.err != nil {
			listing.Warnings = append(listing.Warnings, DiscoveryWarning{Server: name, Err: d.err})
			m.logger.Warn("discovery failed", "server", name, "kind", kind.Name, "error", d.err)
		}
		seen := map[string]bool{}
		for _, item := range d.items {
			if isNil(item) {
				continue
			}
			group.Items = append(group.Items, item)
			key := kind.key(item)
			if seen[key] {
				continue
			}
			seen[key] = true
			owners[key] = append(owners[key], name)
		}
		listing.Groups = append(listing.Groups, group)
	}
	for key, servers := range owners {
		if len(servers) > 1 {
			sort.Strings(servers)
			listing.Conflicts[key] = servers
		}
	}
	return listing
}

func isNil[T any](v T) bool {
	switch x := any(v).(type) {
	case *mcp.Tool:
		return x == nil
	case *mcp.Resource:
		return x == nil
	case *mcp.Prompt:
		return x == nil
	case nil:
		return true
	default:
		return false
	}
}
