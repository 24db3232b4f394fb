package registry_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/oaskema/openapi"
	"github.com/reoring/oaskema/registry"
)

const docV1 = `
openapi: 3.0.3
info: {title: v1, version: "1"}
paths: {}
components:
  schemas:
    Pet:
      type: object
      properties:
        name: {type: string}
`

const docV2 = `
openapi: 3.0.3
info: {title: v2, version: "2"}
paths: {}
components:
  schemas:
    Pet:
      type: object
      properties:
        name: {type: string}
        age: {type: integer}
`

func writeDoc(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestOpenAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "api.yaml")
	writeDoc(t, path, docV1)

	r, err := registry.Open(ctx, path, openapi.Options{})
	require.NoError(t, err)
	require.NotNil(t, r.Current())
	assert.Equal(t, "v1", r.Current().Title())
	assert.EqualValues(t, 1, r.Generation())

	writeDoc(t, path, docV2)
	require.NoError(t, r.Reload(ctx))
	assert.Equal(t, "v2", r.Current().Title())
	assert.EqualValues(t, 2, r.Generation())

	id, ok := r.Current().Schema("Pet")
	require.True(t, ok)
	assert.NoError(t, r.Current().Validate(id, map[string]any{"name": "rex", "age": 3}))
}

func TestReloadFailureKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "api.yaml")
	writeDoc(t, path, docV1)

	r, err := registry.Open(ctx, path, openapi.Options{})
	require.NoError(t, err)
	before := r.Current()

	writeDoc(t, path, "openapi: [broken")
	assert.Error(t, r.Reload(ctx))
	assert.Same(t, before, r.Current())
	assert.EqualValues(t, 1, r.Failures())
	assert.EqualValues(t, 1, r.Generation())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := registry.Open(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), openapi.Options{})
	assert.Error(t, err)
}

func TestNewIsEmptyUntilLoaded(t *testing.T) {
	r := registry.New("unused.yaml", openapi.Options{})
	assert.Nil(t, r.Current())
	assert.Equal(t, "unused.yaml", r.Path())
}

func TestWatchReloadsOnWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	path := filepath.Join(t.TempDir(), "api.yaml")
	writeDoc(t, path, docV1)

	r, err := registry.Open(ctx, path, openapi.Options{}, registry.WithDebounce(10*time.Millisecond))
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, r.Watch(ctx))
	}()

	// Give the watcher time to register before touching the file.
	time.Sleep(50 * time.Millisecond)
	writeDoc(t, path, docV2)

	assert.Eventually(t, func() bool {
		doc := r.Current()
		return doc != nil && doc.Title() == "v2"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	wg.Wait()
}

func TestConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "api.yaml")
	writeDoc(t, path, docV1)
	r, err := registry.Open(ctx, path, openapi.Options{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				doc := r.Current()
				id, ok := doc.Schema("Pet")
				if assert.True(t, ok) {
					assert.NoError(t, doc.Validate(id, map[string]any{"name": "rex"}))
				}
			}
		}()
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Reload(ctx))
	}
	wg.Wait()
}
