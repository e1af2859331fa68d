// Package registry manages the repository registry: CRUD on sources,
// settings and destination resolution, persisting on every change.
package registry

import (
	"fmt"
	"path/filepath"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/haukened/blocklist-manager/internal/blocklist/common/log"
	"github.com/haukened/blocklist-manager/internal/blocklist/domain"
	store "github.com/haukened/blocklist-manager/internal/blocklist/repos/registry"
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrNotFound is returned when no source has the requested id.
	ErrNotFound = errors.Base("repository not found")
	// ErrDuplicateID is returned when adding a source whose id is taken.
	ErrDuplicateID = errors.Base("repository id already exists")
	// ErrInvalidSource is returned when a source fails validation.
	ErrInvalidSource = errors.Base("invalid repository")
	// ErrPersist is returned when the registry could not be saved.
	ErrPersist = errors.Base("failed to save registry")
)

// Manager is the in-memory registry with synchronous persist-on-write.
// A mutation whose save fails is rolled back.
type Manager struct {
	mu          sync.RWMutex
	store       store.Store
	reg         domain.Registry
	fallbackDst string
	logger      log.Logger
}

// AddOption customizes Add.
type AddOption func(*addOptions)

type addOptions struct {
	enabled *bool
}

// WithEnabled sets the enabled flag explicitly instead of taking it from
// the auto_enable_new setting.
func WithEnabled(enabled bool) AddOption {
	return func(o *addOptions) { o.enabled = &enabled }
}

// NewManager loads the registry from s. A load failure is logged and the
// manager starts from whatever registry the store returned. fallbackDst is
// used by ResolveDestination when the settings carry no default destination.
func NewManager(s store.Store, fallbackDst string, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	reg, err := s.Load()
	if err != nil {
		logger.Error(map[string]any{"error": err.Error()}, "Error loading repos config")
	}
	if reg.Repositories == nil {
		reg.Repositories = []domain.RepositorySource{}
	}
	return &Manager{store: s, reg: reg, fallbackDst: fallbackDst, logger: logger}
}

// Reload replaces the in-memory registry with the stored one. On error the
// loaded registry is kept.
func (m *Manager) Reload() error {
	reg, err := m.store.Load()
	if err != nil {
		return err
	}
	if reg.Repositories == nil {
		reg.Repositories = []domain.RepositorySource{}
	}
	m.mu.Lock()
	m.reg = reg
	m.mu.Unlock()
	return nil
}

// All returns every source in insertion order.
func (m *Manager) All() []domain.RepositorySource {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reg.Clone().Repositories
}

// Enabled returns the enabled sources in insertion order.
func (m *Manager) Enabled() []domain.RepositorySource {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.RepositorySource
	for _, r := range m.reg.Repositories {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// Get returns the source with the given id.
func (m *Manager) Get(id string) (domain.RepositorySource, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.indexOf(id)
	if i < 0 {
		return domain.RepositorySource{}, false
	}
	return m.reg.Repositories[i], true
}

// Add appends src. Enabled defaults to the auto_enable_new setting,
// DestinationFolder to "Custom Lists".
func (m *Manager) Add(src domain.RepositorySource, opts ...AddOption) (bool, string) {
	err := m.add(src, opts...)
	switch {
	case err == nil:
		return true, fmt.Sprintf("Repository '%s' added successfully", src.Name)
	case errors.Is(err, ErrDuplicateID):
		return false, fmt.Sprintf("Repository with ID '%s' already exists", src.ID)
	case errors.Is(err, ErrInvalidSource):
		return false, sentence(err)
	default:
		return false, "Failed to save repository"
	}
}

func (m *Manager) add(src domain.RepositorySource, opts ...AddOption) error {
	var o addOptions
	for _, opt := range opts {
		opt(&o)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := src.Validate(); err != nil {
		return invalidSourceError{err: err}
	}
	if m.indexOf(src.ID) >= 0 {
		return errors.Errorf("%w: %s", ErrDuplicateID, src.ID)
	}

	src.Enabled = m.reg.Settings.AutoEnableNew
	if o.enabled != nil {
		src.Enabled = *o.enabled
	}
	if src.DestinationFolder == "" {
		src.DestinationFolder = domain.DefaultDestinationFolder
	}

	return m.mutate(func(r *domain.Registry) {
		r.Repositories = append(r.Repositories, src)
	})
}

// Update applies patch to the source with the given id. The id itself
// cannot be changed.
func (m *Manager) Update(id string, patch domain.SourcePatch) (bool, string) {
	err := m.update(id, patch)
	switch {
	case err == nil:
		return true, fmt.Sprintf("Repository '%s' updated successfully", id)
	case errors.Is(err, ErrNotFound):
		return false, fmt.Sprintf("Repository '%s' not found", id)
	case errors.Is(err, ErrInvalidSource):
		return false, sentence(err)
	default:
		return false, "Failed to save changes"
	}
}

func (m *Manager) update(id string, patch domain.SourcePatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return errors.Errorf("%w: %s", ErrNotFound, id)
	}
	updated := patch.Apply(m.reg.Repositories[i])
	if err := updated.Validate(); err != nil {
		return invalidSourceError{err: err}
	}
	return m.mutate(func(r *domain.Registry) {
		r.Repositories[i] = updated
	})
}

// Remove deletes the source with the given id.
func (m *Manager) Remove(id string) (bool, string) {
	err := m.remove(id)
	switch {
	case err == nil:
		return true, fmt.Sprintf("Repository '%s' removed successfully", id)
	case errors.Is(err, ErrNotFound):
		return false, fmt.Sprintf("Repository '%s' not found", id)
	default:
		return false, "Failed to save changes"
	}
}

func (m *Manager) remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return errors.Errorf("%w: %s", ErrNotFound, id)
	}
	return m.mutate(func(r *domain.Registry) {
		r.Repositories = append(r.Repositories[:i], r.Repositories[i+1:]...)
	})
}

// Toggle flips the enabled flag of the source with the given id and
// returns the new value.
func (m *Manager) Toggle(id string) (bool, bool, string) {
	enabled, err := m.toggle(id)
	switch {
	case err == nil:
		state := "disabled"
		if enabled {
			state = "enabled"
		}
		return true, enabled, fmt.Sprintf("Repository '%s' %s", id, state)
	case errors.Is(err, ErrNotFound):
		return false, false, fmt.Sprintf("Repository '%s' not found", id)
	default:
		return false, false, "Failed to save changes"
	}
}

func (m *Manager) toggle(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return false, errors.Errorf("%w: %s", ErrNotFound, id)
	}
	enabled := !m.reg.Repositories[i].Enabled
	err := m.mutate(func(r *domain.Registry) {
		r.Repositories[i].Enabled = enabled
	})
	return enabled, err
}

// Settings returns the registry-wide settings.
func (m *Manager) Settings() domain.RegistrySettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reg.Settings
}

// UpdateSettings applies patch to the settings and persists them.
func (m *Manager) UpdateSettings(patch domain.SettingsPatch) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.mutate(func(r *domain.Registry) {
		r.Settings = patch.Apply(r.Settings)
	})
	if err != nil {
		return false, "Failed to save settings"
	}
	return true, "Settings updated successfully"
}

// ResolveDestination returns the folder downloads for src are written to:
// its destination folder under the default destination. An absolute
// destination folder is used as is.
func (m *Manager) ResolveDestination(src domain.RepositorySource) string {
	m.mu.RLock()
	base := m.reg.Settings.DefaultDestination
	m.mu.RUnlock()
	if base == "" {
		base = m.fallbackDst
	}
	folder := src.DestinationFolder
	if folder == "" {
		folder = domain.DefaultDestinationFolder
	}
	if filepath.IsAbs(folder) {
		return folder
	}
	return filepath.Join(base, folder)
}

// mutate applies fn to a copy of the registry, saves it, and only then
// swaps it in. Callers hold m.mu.
func (m *Manager) mutate(fn func(r *domain.Registry)) error {
	next := m.reg.Clone()
	fn(&next)
	if err := m.store.Save(next); err != nil {
		m.logger.Error(map[string]any{"error": err.Error()}, "Error saving repos config")
		return errors.Errorf("%w: %s", ErrPersist, err.Error())
	}
	m.reg = next
	return nil
}

func (m *Manager) indexOf(id string) int {
	for i, r := range m.reg.Repositories {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// invalidSourceError carries a validation failure. Its message is the
// validation message alone so it can be shown to the user.
type invalidSourceError struct {
	err error
}

func (e invalidSourceError) Error() string        { return e.err.Error() }
func (e invalidSourceError) Unwrap() error        { return e.err }
func (e invalidSourceError) Is(target error) bool { return target == ErrInvalidSource }

// sentence upper-cases the first letter of err's message.
func sentence(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	r, size := utf8.DecodeRuneInString(msg)
	return string(unicode.ToUpper(r)) + msg[size:]
}
