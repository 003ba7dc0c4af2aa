package podfs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAtomicRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		doc  map[string]any
	}{
		{"empty object", map[string]any{}},
		{"flat document", map[string]any{"result": "42", "pod_id": "pod-1"}},
		{"nested document", map[string]any{
			"result": map[string]any{
				"items": []any{"a", "b", map[string]any{"deep": true}},
			},
		}},
		{"unicode content", map[string]any{"result": "résultat — 結果 ✓"}},
		{"null value", map[string]any{"result": nil}},
	}

	store := NewStore()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "doc.json")
			require.NoError(t, store.WriteAtomic(path, tt.doc))

			got, err := store.ReadDocument(path)
			require.NoError(t, err)

			want, _ := json.Marshal(tt.doc)
			gotJSON, _ := json.Marshal(got)
			assert.JSONEq(t, string(want), string(gotJSON))
		})
	}
}

func TestWriteAtomicCreatesParentDirs(t *testing.T) {
	store := NewStore()
	path := filepath.Join(t.TempDir(), "a", "b", "c", "doc.json")
	require.NoError(t, store.WriteAtomic(path, map[string]any{"ok": true}))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestWriteAtomicOverwriteLeavesOnlyFinalDocument(t *testing.T) {
	store := NewStore()
	path := filepath.Join(t.TempDir(), "doc.json")

	require.NoError(t, store.WriteAtomic(path, map[string]any{"version": 1, "only_first": true}))
	require.NoError(t, store.WriteAtomic(path, map[string]any{"version": 2}))

	doc, err := store.ReadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, float64(2), doc["version"])
	assert.NotContains(t, doc, "only_first")
}

func TestWriteAtomicLeavesNoTempFiles(t *testing.T) {
	store := NewStore()
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	require.NoError(t, store.WriteAtomic(path, map[string]any{"ok": true}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "doc.json", entries[0].Name())
}

func TestWriteAtomicSerializationFailureLeavesTargetUntouched(t *testing.T) {
	store := NewStore()
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	require.NoError(t, store.WriteAtomic(path, map[string]any{"version": 1}))

	// Channels cannot be serialized to JSON.
	err := store.WriteAtomic(path, map[string]any{"bad": make(chan int)})
	require.Error(t, err)

	doc, err := store.ReadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, float64(1), doc["version"])

	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 1)
}

func TestConcurrentWritersNeverTearDocument(t *testing.T) {
	store := NewStore()
	path := filepath.Join(t.TempDir(), "doc.json")

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			doc := map[string]any{
				"writer":  n,
				"payload": strings.Repeat(fmt.Sprintf("writer-%d;", n), 200),
			}
			assert.NoError(t, store.WriteAtomic(path, doc))
		}(i)
	}
	wg.Wait()

	doc, err := store.ReadDocument(path)
	require.NoError(t, err)

	// The surviving document must match exactly one writer, never a mix.
	n, ok := doc["writer"].(float64)
	require.True(t, ok)
	assert.Equal(t, strings.Repeat(fmt.Sprintf("writer-%d;", int(n)), 200), doc["payload"])
}

func TestReadMissingFile(t *testing.T) {
	store := NewStore()
	err := store.Read(filepath.Join(t.TempDir(), "absent.json"), &map[string]any{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadMalformedJSON(t *testing.T) {
	store := NewStore()
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	err := store.Read(path, &map[string]any{})
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, path, decodeErr.Path)
}

func TestReadIntoTypedStruct(t *testing.T) {
	store := NewStore()
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, store.WriteAtomic(path, map[string]any{"result": "PASS", "attempts": 2}))

	var out struct {
		Result   string `json:"result"`
		Attempts int    `json:"attempts"`
	}
	require.NoError(t, store.Read(path, &out))
	assert.Equal(t, "PASS", out.Result)
	assert.Equal(t, 2, out.Attempts)
}
