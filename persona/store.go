package persona

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Persister reads and writes the override document as a whole.
// Load returns (nil, nil) when nothing has been stored yet.
type Persister interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, doc []byte) error
}

// Store holds the built-in profiles and the current override set.
// Reads see either the previous or the next override set, never a mix:
// writers persist first, then swap the map under the write lock.
type Store struct {
	mu        sync.RWMutex
	builtins  map[string]Profile
	overrides map[string]Override
	persister Persister
	logger    *zap.Logger
}

// NewStore creates a store over the given built-ins. persister may be nil,
// in which case overrides live only in memory.
func NewStore(builtins map[string]Profile, persister Persister, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := make(map[string]Profile, len(builtins))
	for name, p := range builtins {
		key := NormalizeName(name)
		p = p.Clone()
		p.Name = key
		b[key] = p
	}
	return &Store{
		builtins:  b,
		overrides: make(map[string]Override),
		persister: persister,
		logger:    logger.Named("store"),
	}
}

// NewDefaultStore creates a store over the five built-in persona tiers.
func NewDefaultStore(persister Persister, logger *zap.Logger) *Store {
	return NewStore(builtinProfiles(), persister, logger)
}

// Load replaces the in-memory overrides with the persisted document.
// A malformed document is rejected and the current state is kept.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	doc, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load overrides: %w", err)
	}
	set, err := DecodeOverrides(doc)
	if err != nil {
		return fmt.Errorf("decode overrides: %w", err)
	}
	for name := range set {
		if _, ok := s.builtins[name]; !ok {
			return fmt.Errorf("decode overrides: %w", unknownPersona(name))
		}
	}

	s.mu.Lock()
	s.overrides = set
	s.mu.Unlock()
	s.logger.Info("overrides loaded", zap.Int("count", len(set)))
	return nil
}

// Names returns the built-in persona names, sorted.
func (s *Store) Names() []string {
	return sortedNames(s.builtins)
}

// Has reports whether name is a built-in persona.
func (s *Store) Has(name string) bool {
	_, ok := s.builtins[NormalizeName(name)]
	return ok
}

// Builtin returns a copy of the unmodified built-in profile.
func (s *Store) Builtin(name string) (Profile, error) {
	key := NormalizeName(name)
	p, ok := s.builtins[key]
	if !ok {
		return Profile{}, unknownPersona(key)
	}
	return p.Clone(), nil
}

// Resolve returns the effective profile: the built-in with the stored
// override applied. The merged view is rebuilt on every call.
func (s *Store) Resolve(name string) (Profile, error) {
	key := NormalizeName(name)
	base, ok := s.builtins[key]
	if !ok {
		return Profile{}, unknownPersona(key)
	}
	s.mu.RLock()
	over, has := s.overrides[key]
	s.mu.RUnlock()
	if !has {
		return base.Clone(), nil
	}
	return over.Apply(base), nil
}

// Override returns the stored override for name, if any.
func (s *Store) Override(name string) (Override, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.overrides[NormalizeName(name)]
	if !ok {
		return Override{}, false
	}
	return o.Clone(), true
}

// SetOverride merges partial into the current override for name, validates
// the merged result and persists the whole document.
func (s *Store) SetOverride(ctx context.Context, name string, partial Override) error {
	key := NormalizeName(name)
	if _, ok := s.builtins[key]; !ok {
		return unknownPersona(key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.overrides[key].Merge(partial)
	if err := ValidateOverride(merged); err != nil {
		return withPersona(err, key)
	}
	next := s.copyOverridesLocked()
	next[key] = merged
	if err := s.commitLocked(ctx, next); err != nil {
		return err
	}
	s.logger.Info("override set", zap.String("persona", key))
	return nil
}

// SetOverrideJSON parses a raw override payload and applies it like SetOverride.
func (s *Store) SetOverrideJSON(ctx context.Context, name string, payload []byte) error {
	key := NormalizeName(name)
	if _, ok := s.builtins[key]; !ok {
		return unknownPersona(key)
	}
	partial, err := ParseOverride(payload)
	if err != nil {
		return withPersona(err, key)
	}
	return s.SetOverride(ctx, key, partial)
}

// ResetOverride drops any stored override for name.
func (s *Store) ResetOverride(ctx context.Context, name string) error {
	key := NormalizeName(name)
	if _, ok := s.builtins[key]; !ok {
		return unknownPersona(key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.copyOverridesLocked()
	delete(next, key)
	if err := s.commitLocked(ctx, next); err != nil {
		return err
	}
	s.logger.Info("override reset", zap.String("persona", key))
	return nil
}

// ResetAll clears every override and persists the empty document.
func (s *Store) ResetAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.commitLocked(ctx, make(map[string]Override)); err != nil {
		return err
	}
	s.logger.Info("all overrides reset")
	return nil
}

// ExportOverrides returns a deep copy of the complete override set.
func (s *Store) ExportOverrides() map[string]Override {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyOverridesLocked()
}

// ExportJSON renders the override set in the persisted document format.
func (s *Store) ExportJSON() ([]byte, error) {
	return EncodeOverrides(s.ExportOverrides())
}

// ImportOverrides validates every entry and then replaces the whole set.
// A single bad entry rejects the import and leaves the store untouched.
func (s *Store) ImportOverrides(ctx context.Context, set map[string]Override) error {
	next := make(map[string]Override, len(set))
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		key := NormalizeName(name)
		if key == "" {
			continue
		}
		if _, ok := s.builtins[key]; !ok {
			return unknownPersona(key)
		}
		if err := ValidateOverride(set[name]); err != nil {
			return withPersona(err, key)
		}
		next[key] = set[name].Clone()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.commitLocked(ctx, next); err != nil {
		return err
	}
	s.logger.Info("overrides imported", zap.Int("count", len(next)))
	return nil
}

// ImportJSON accepts either {"overrides": {...}} or the bare override object.
func (s *Store) ImportJSON(ctx context.Context, payload []byte) error {
	var wrapper struct {
		Overrides json.RawMessage `json:"overrides"`
	}
	doc := payload
	if err := json.Unmarshal(payload, &wrapper); err == nil && len(wrapper.Overrides) > 0 && !isNull(wrapper.Overrides) {
		doc = wrapper.Overrides
	}
	set, err := DecodeOverrides(doc)
	if err != nil {
		return err
	}
	return s.ImportOverrides(ctx, set)
}

func (s *Store) copyOverridesLocked() map[string]Override {
	out := make(map[string]Override, len(s.overrides))
	for k, v := range s.overrides {
		out[k] = v.Clone()
	}
	return out
}

func (s *Store) commitLocked(ctx context.Context, next map[string]Override) error {
	if s.persister != nil {
		doc, err := EncodeOverrides(next)
		if err != nil {
			return fmt.Errorf("encode overrides: %w", err)
		}
		if err := s.persister.Save(ctx, doc); err != nil {
			return fmt.Errorf("save overrides: %w", err)
		}
	}
	s.overrides = next
	return nil
}
