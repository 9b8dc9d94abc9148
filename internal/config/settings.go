package config

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"payloadforge/internal/logging"
)

// Runtime setting keys.
const (
	KeyUseLiveSource    = "useLiveSource"
	KeyCacheEnabled     = "cacheEnabled"
	KeyDebugMode        = "debugMode"
	KeyRequestTimeoutMs = "requestTimeoutMs"
	KeyRetryAttempts    = "retryAttempts"
	KeyRetryDelayMs     = "retryDelayMs"
)

// Keys lists every runtime setting key in display order.
var Keys = []string{
	KeyUseLiveSource,
	KeyCacheEnabled,
	KeyDebugMode,
	KeyRequestTimeoutMs,
	KeyRetryAttempts,
	KeyRetryDelayMs,
}

// Settings are the runtime switches consulted by the resolver and pipeline.
type Settings struct {
	UseLiveSource    bool `json:"useLiveSource"`
	CacheEnabled     bool `json:"cacheEnabled"`
	DebugMode        bool `json:"debugMode"`
	RequestTimeoutMs int  `json:"requestTimeoutMs"`
	RetryAttempts    int  `json:"retryAttempts"`
	RetryDelayMs     int  `json:"retryDelayMs"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		UseLiveSource:    false,
		CacheEnabled:     true,
		DebugMode:        false,
		RequestTimeoutMs: 10000,
		RetryAttempts:    3,
		RetryDelayMs:     1000,
	}
}

// RequestTimeout returns the per-attempt network timeout.
func (s Settings) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutMs) * time.Millisecond
}

// RetryDelay returns the delay before the first retry.
func (s Settings) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelayMs) * time.Millisecond
}

// ConfigValidationError reports a rejected setting value. The previous
// value is kept.
type ConfigValidationError struct {
	Key   string
	Value any
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid value %v (%T) for setting %s", e.Value, e.Value, e.Key)
}

// Store holds the runtime settings for one session. Values are layered
// key by key: defaults, then the persisted override file, then
// PAYLOADFORGE_* environment variables, then request overrides.
// Invalid values never fail; they are logged and the prior value kept.
type Store struct {
	mu        sync.RWMutex
	cur       Settings
	path      string
	persisted map[string]any
	listeners []func(Settings)
}

// NewStore builds a store, reading the persisted override file at path
// (which may be empty or absent) and the environment.
func NewStore(path string) *Store {
	s := &Store{cur: DefaultSettings(), path: path, persisted: make(map[string]any)}
	s.loadPersisted()
	s.applyEnv()
	return s
}

func (s *Store) loadPersisted() {
	if s.path == "" {
		return
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.ConfigWarn("failed to read settings %s: %v", s.path, err)
		}
		return
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		logging.ConfigWarn("ignoring unparsable settings %s: %v", s.path, err)
		return
	}
	for _, key := range Keys {
		if v, ok := raw[key]; ok && s.apply(key, v) {
			s.persisted[key] = v
		}
	}
	logging.Config("loaded %d persisted settings from %s", len(s.persisted), s.path)
}

// EnvName returns the environment variable consulted for key, e.g.
// PAYLOADFORGE_REQUEST_TIMEOUT_MS for requestTimeoutMs.
func EnvName(key string) string {
	var b strings.Builder
	b.WriteString("PAYLOADFORGE_")
	for i, r := range key {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

func (s *Store) applyEnv() {
	for _, key := range Keys {
		if v, ok := os.LookupEnv(EnvName(key)); ok && v != "" {
			s.apply(key, v)
		}
	}
}

// apply validates and assigns one value. Callers hold mu or own s.
func (s *Store) apply(key string, value any) bool {
	switch key {
	case KeyUseLiveSource, KeyCacheEnabled, KeyDebugMode:
		b, ok := coerceBool(value)
		if !ok {
			logging.ConfigWarn("%v", &ConfigValidationError{Key: key, Value: value})
			return false
		}
		switch key {
		case KeyUseLiveSource:
			s.cur.UseLiveSource = b
		case KeyCacheEnabled:
			s.cur.CacheEnabled = b
		case KeyDebugMode:
			s.cur.DebugMode = b
		}
	case KeyRequestTimeoutMs, KeyRetryAttempts, KeyRetryDelayMs:
		n, ok := coercePositiveInt(value)
		if !ok {
			logging.ConfigWarn("%v", &ConfigValidationError{Key: key, Value: value})
			return false
		}
		switch key {
		case KeyRequestTimeoutMs:
			s.cur.RequestTimeoutMs = n
		case KeyRetryAttempts:
			s.cur.RetryAttempts = n
		case KeyRetryDelayMs:
			s.cur.RetryDelayMs = n
		}
	default:
		logging.ConfigWarn("ignoring unknown setting %q", key)
		return false
	}
	return true
}

// Get returns the current value of key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.value(key)
}

func (st Settings) value(key string) (any, bool) {
	switch key {
	case KeyUseLiveSource:
		return st.UseLiveSource, true
	case KeyCacheEnabled:
		return st.CacheEnabled, true
	case KeyDebugMode:
		return st.DebugMode, true
	case KeyRequestTimeoutMs:
		return st.RequestTimeoutMs, true
	case KeyRetryAttempts:
		return st.RetryAttempts, true
	case KeyRetryDelayMs:
		return st.RetryDelayMs, true
	}
	return nil, false
}

// Set assigns key. It reports whether the value was accepted; rejected
// values leave the previous value in place. With persist, the accepted
// value is also written to the override file; a write failure is only
// logged.
func (s *Store) Set(key string, value any, persist bool) bool {
	s.mu.Lock()
	if !s.apply(key, value) {
		s.mu.Unlock()
		return false
	}
	if persist {
		s.persisted[key] = value
		s.savePersisted()
	}
	snap := s.cur
	listeners := s.listeners
	s.mu.Unlock()

	logging.ConfigDebug("set %s=%v (persist=%v)", key, value, persist)
	notify(listeners, snap)
	return true
}

// GetAll returns a copy of every setting.
func (s *Store) GetAll() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Snapshot returns the settings in effect now. Each resolution takes one
// snapshot so a concurrent Set never changes a call midway.
func (s *Store) Snapshot() Settings {
	return s.GetAll()
}

// Reset restores the defaults and removes the override file.
func (s *Store) Reset() {
	s.mu.Lock()
	s.cur = DefaultSettings()
	s.persisted = make(map[string]any)
	if s.path != "" {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			logging.ConfigWarn("failed to remove settings %s: %v", s.path, err)
		}
	}
	snap := s.cur
	listeners := s.listeners
	s.mu.Unlock()

	logging.Config("settings reset to defaults")
	notify(listeners, snap)
}

// ApplyOverrides layers request-scoped values (for example a URL query)
// over the current settings. Overrides are never persisted.
func (s *Store) ApplyOverrides(values url.Values) {
	s.mu.Lock()
	applied := 0
	for _, key := range Keys {
		if values.Has(key) && s.apply(key, values.Get(key)) {
			applied++
		}
	}
	snap := s.cur
	listeners := s.listeners
	s.mu.Unlock()

	if applied > 0 {
		logging.ConfigDebug("applied %d request overrides", applied)
		notify(listeners, snap)
	}
}

// OnChange registers fn to run after every accepted change.
func (s *Store) OnChange(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Path returns the override file path.
func (s *Store) Path() string {
	return s.path
}

// Persisted returns the keys currently held in the override file.
func (s *Store) Persisted() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.persisted))
	for k := range s.persisted {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) savePersisted() {
	if s.path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		logging.ConfigWarn("failed to create settings directory: %v", err)
		return
	}
	data, err := json.MarshalIndent(s.persisted, "", "  ")
	if err != nil {
		logging.ConfigWarn("failed to marshal settings: %v", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		logging.ConfigWarn("failed to write settings %s: %v", s.path, err)
	}
}

func notify(listeners []func(Settings), snap Settings) {
	for _, fn := range listeners {
		fn(snap)
	}
}

func coerceBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case int:
		return t != 0, true
	case int64:
		return t != 0, true
	case float64:
		return t != 0, true
	case json.Number:
		f, err := t.Float64()
		return f != 0, err == nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "on":
			return true, true
		case "false", "0", "no", "off":
			return false, true
		}
	}
	return false, false
}

func coercePositiveInt(v any) (int, bool) {
	var f float64
	switch t := v.(type) {
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case float64:
		f = t
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || f <= 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
