package mcpmgr

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"github.com/spf13/afero"
)

const (
	// DefaultTimeout bounds connect and per-server queries when neither the
	// server config nor ManagerOptions set one.
	DefaultTimeout       = 30 * time.Second
	DefaultClientName    = "mcpcs"
	DefaultClientVersion = "0.1.0"
)

// DiscoveryFailureMode controls how a failed list query on one server
// affects name resolution.
type DiscoveryFailureMode int

const (
	// DiscoveryFailuresSkip leaves failed servers out of the candidate set
	// and reports them as warnings.
	DiscoveryFailuresSkip DiscoveryFailureMode = iota
	// DiscoveryFailuresStrict refuses to act on a NotFound or Unique outcome
	// when any server could not be asked.
	DiscoveryFailuresStrict
)

// ManagerOptions configures a Manager. The zero value is usable.
type ManagerOptions struct {
	DefaultTimeout time.Duration
	// CallTimeout bounds each tool call, resource read, and prompt render.
	// Zero leaves calls bounded only by the caller's context; long-running
	// tools are common on local servers.
	CallTimeout time.Duration
	ClientName     string
	ClientVersion  string
	// LogJSONRPC traces protocol messages at debug level. Ignored when
	// Establisher is set.
	LogJSONRPC        bool
	DiscoveryFailures DiscoveryFailureMode
	Logger            *slog.Logger
	// Establisher overrides how sessions are created. Nil uses a
	// TransportEstablisher built from the fields above.
	Establisher Establisher
	// FS receives downloaded resources. Nil means the OS filesystem.
	FS afero.Fs
}

// LoadReport summarizes one LoadAll call.
type LoadReport struct {
	// Connected lists, sorted, the servers now in the registry.
	Connected []string
	// Failures holds one error per server that could not be established.
	Failures map[string]error
}

// Failed returns the names of failed servers, sorted.
func (r *LoadReport) Failed() []string {
	out := make([]string, 0, len(r.Failures))
	for name := range r.Failures {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Manager owns the set of live sessions, keyed by server name. The published
// map is never mutated; LoadAll and Close replace it wholesale.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	// reloadMu serializes LoadAll and Close.
	reloadMu sync.Mutex

	hooksMu     sync.Mutex
	reloadHooks []func([]string)

	options     ManagerOptions
	logger      *slog.Logger
	establisher Establisher
}

// NewManager returns an empty registry. Call LoadAll to connect servers.
func NewManager(opts *ManagerOptions) *Manager {
	var options ManagerOptions
	if opts != nil {
		options = *opts
	}
	if options.DefaultTimeout <= 0 {
		options.DefaultTimeout = DefaultTimeout
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	est := options.Establisher
	if est == nil {
		est = &TransportEstablisher{
			ClientName:     options.ClientName,
			ClientVersion:  options.ClientVersion,
			DefaultTimeout: options.DefaultTimeout,
			LogJSONRPC:     options.LogJSONRPC,
			Logger:         logger,
		}
	}
	return &Manager{
		sessions:    map[string]*Session{},
		options:     options,
		logger:      logger,
		establisher: est,
	}
}

// LoadAll establishes every config concurrently and replaces the registry
// with the sessions that succeeded. Failures are logged and reported; they
// never abort other servers. Superseded sessions are closed after the swap.
func (m *Manager) LoadAll(ctx context.Context, configs map[string]ServerConfig) *LoadReport {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	var (
		resMu    sync.Mutex
		fresh    = make(map[string]*Session, len(configs))
		failures = map[string]error{}
		wg       conc.WaitGroup
	)
	record := func(name string, s *Session, err error) {
		resMu.Lock()
		defer resMu.Unlock()
		if err != nil {
			failures[name] = err
			return
		}
		fresh[name] = s
	}

	for name, cfg := range configs {
		if err := validateServerName(name); err != nil {
			record(name, nil, &ConfigError{Server: name, Err: err})
			continue
		}
		wg.Go(func() {
			var (
				s   *Session
				err error
			)
			if r := panics.Try(func() { s, err = m.establisher.Establish(ctx, name, cfg) }); r != nil {
				err = r.AsError()
			}
			if err == nil && s == nil {
				err = errors.New("establisher returned no session")
			}
			if err != nil {
				var connErr *ConnectError
				if !errors.As(err, &connErr) {
					err = &ConnectError{Server: name, Transport: TransportOf(cfg), Err: err}
				}
				record(name, nil, err)
				return
			}
			s.timeout = m.timeoutFor(cfg)
			record(name, s, nil)
		})
	}
	wg.Wait()

	for _, name := range sortedKeys(failures) {
		m.logger.Error("failed to connect server", "server", name, "error", failures[name])
	}

	previous := m.swap(fresh)
	_ = m.releaseAll(previous)
	for _, s := range fresh {
		go m.watch(s)
	}

	connected := sortedKeys(fresh)
	m.logger.Info("servers loaded", "connected", len(connected), "failed", len(failures))
	m.runReloadHooks(connected)
	return &LoadReport{Connected: connected, Failures: failures}
}

// ListServers returns the names of connected servers, sorted.
func (m *Manager) ListServers() []string {
	return sortedKeys(m.snapshot())
}

// Session returns the live session for name.
func (m *Manager) Session(name string) (*Session, bool) {
	s, ok := m.snapshot()[name]
	return s, ok
}

// Close empties the registry and releases every session.
func (m *Manager) Close(ctx context.Context) error {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	previous := m.swap(map[string]*Session{})
	done := make(chan error, 1)
	go func() { done <- m.releaseAll(previous) }()
	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	m.runReloadHooks(nil)
	return err
}

// OnReload registers a hook that runs after every registry swap with the
// connected server names. Hooks run without the registry lock held.
func (m *Manager) OnReload(hook func(servers []string)) {
	if hook == nil {
		return
	}
	m.hooksMu.Lock()
	m.reloadHooks = append(m.reloadHooks, hook)
	m.hooksMu.Unlock()
}

// Options returns the effective options.
func (m *Manager) Options() ManagerOptions { return m.options }

func (m *Manager) snapshot() map[string]*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions
}

// sessionsSorted returns the current sessions ordered by name.
func (m *Manager) sessionsSorted() []*Session {
	snap := m.snapshot()
	out := make([]*Session, 0, len(snap))
	for _, name := range sortedKeys(snap) {
		out = append(out, snap[name])
	}
	return out
}

func (m *Manager) swap(next map[string]*Session) map[string]*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.sessions
	m.sessions = next
	return prev
}

func (m *Manager) releaseAll(sessions map[string]*Session) error {
	var (
		wg   conc.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for name, s := range sessions {
		wg.Go(func() {
			if err := s.Close(); err != nil {
				m.logger.Debug("session close", "server", name, "error", err)
				mu.Lock()
				errs = append(errs, errors.Wrapf(err, "close %q", name))
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}

// watch logs when a current session's channel ends without Close.
func (m *Manager) watch(s *Session) {
	<-s.Done()
	if s.closedLocally() {
		return
	}
	if cur, ok := m.Session(s.Name()); !ok || cur != s {
		return
	}
	m.logger.Warn("server channel closed", "server", s.Name(), "transport", s.Transport(), "error", s.Err())
}

func (m *Manager) runReloadHooks(servers []string) {
	m.hooksMu.Lock()
	hooks := append([]func([]string){}, m.reloadHooks...)
	m.hooksMu.Unlock()
	for _, hook := range hooks {
		if r := panics.Try(func() { hook(append([]string(nil), servers...)) }); r != nil {
			m.logger.Error("reload hook panicked", "error", r.AsError())
		}
	}
}

func (m *Manager) timeoutFor(cfg ServerConfig) time.Duration {
	if cfg != nil {
		if base := cfg.base(); base != nil && base.Timeout > 0 {
			return base.Timeout
		}
	}
	return m.options.DefaultTimeout
}

func (m *Manager) sessionTimeout(s *Session) time.Duration {
	if s.timeout > 0 {
		return s.timeout
	}
	return m.options.DefaultTimeout
}

func validateServerName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("server name is empty")
	}
	if strings.Contains(name, "/") {
		return errors.New("server name must not contain '/'")
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
