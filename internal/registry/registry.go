package registry

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/goccy/go-yaml"
)

var (
	ErrNotFound = errors.New("instance not found")
	ErrInactive = errors.New("instance is inactive")
)

// Instance describes one remote admin panel this service may drive.
// The registry is the source of truth for connection parameters; nothing
// here is ever written back.
type Instance struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	BaseURL  string `yaml:"base_url" json:"base_url"`
	Username string `yaml:"username" json:"-"`
	Password string `yaml:"password" json:"-"`
	Active   bool   `yaml:"active" json:"active"`
}

type registryFile struct {
	Instances []Instance `yaml:"instances"`
}

// Manager holds the in-memory view of the registry file.
type Manager struct {
	mu   sync.RWMutex
	path string
	byID map[string]Instance
}

// NewManager creates a manager and loads the registry file.
func NewManager(path string) (*Manager, error) {
	m := &Manager{
		path: path,
		byID: make(map[string]Instance),
	}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload re-reads the registry file, replacing the in-memory view atomically.
func (m *Manager) Reload() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("failed to read registry: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse registry: %w", err)
	}

	byID := make(map[string]Instance, len(file.Instances))
	for _, inst := range file.Instances {
		if inst.ID == "" {
			return fmt.Errorf("registry entry %q has no id", inst.Name)
		}
		if inst.BaseURL == "" {
			return fmt.Errorf("registry entry %q has no base_url", inst.ID)
		}
		if _, dup := byID[inst.ID]; dup {
			return fmt.Errorf("duplicate registry id %q", inst.ID)
		}
		byID[inst.ID] = inst
	}

	m.mu.Lock()
	m.byID = byID
	m.mu.Unlock()
	return nil
}

// Get returns an active instance by id.
func (m *Manager) Get(id string) (Instance, error) {
	m.mu.RLock()
	inst, ok := m.byID[id]
	m.mu.RUnlock()

	if !ok {
		return Instance{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !inst.Active {
		return Instance{}, fmt.Errorf("%w: %s", ErrInactive, id)
	}
	return inst, nil
}

// List returns all instances sorted by id, including inactive ones.
func (m *Manager) List() []Instance {
	m.mu.RLock()
	out := make([]Instance, 0, len(m.byID))
	for _, inst := range m.byID {
		out = append(out, inst)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
