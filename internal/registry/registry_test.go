package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRegistry = `
instances:
  - id: edge-01
    name: Edge Panel 01
    base_url: https://panel-01.example.net
    username: admin
    password: hunter2
    active: true
  - id: edge-02
    name: Edge Panel 02
    base_url: https://panel-02.example.net
    username: admin
    password: hunter2
    active: false
`

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "instances.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestManagerGet(t *testing.T) {
	m, err := NewManager(writeRegistry(t, sampleRegistry))
	require.NoError(t, err)

	inst, err := m.Get("edge-01")
	require.NoError(t, err)
	assert.Equal(t, "https://panel-01.example.net", inst.BaseURL)
	assert.Equal(t, "admin", inst.Username)
}

func TestManagerGetInactive(t *testing.T) {
	m, err := NewManager(writeRegistry(t, sampleRegistry))
	require.NoError(t, err)

	_, err = m.Get("edge-02")
	assert.ErrorIs(t, err, ErrInactive)
}

func TestManagerGetUnknown(t *testing.T) {
	m, err := NewManager(writeRegistry(t, sampleRegistry))
	require.NoError(t, err)

	_, err = m.Get("edge-99")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerList(t *testing.T) {
	m, err := NewManager(writeRegistry(t, sampleRegistry))
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, "edge-01", list[0].ID)
	assert.Equal(t, "edge-02", list[1].ID)
}

func TestManagerRejectsDuplicateIDs(t *testing.T) {
	_, err := NewManager(writeRegistry(t, `
instances:
  - id: edge-01
    base_url: https://a.example.net
  - id: edge-01
    base_url: https://b.example.net
`))
	assert.Error(t, err)
}

func TestManagerRejectsMissingBaseURL(t *testing.T) {
	_, err := NewManager(writeRegistry(t, `
instances:
  - id: edge-01
    name: broken
`))
	assert.Error(t, err)
}
