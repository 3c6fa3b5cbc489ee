package modelregistry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llmshield/gateway/internal/gwerrors"
)

func writeCatalog(t *testing.T, cacheDir string, entries ...Entry) *Catalog {
	t.Helper()
	doc := catalogDoc{CacheDir: cacheDir, Models: entries}
	entriesMap := make(map[Key]Entry, len(entries))
	for _, e := range entries {
		entriesMap[Key{Task: e.Task, Variant: e.Variant}] = e
	}
	_ = doc
	return &Catalog{CacheDir: cacheDir, entries: entriesMap}
}

func sha256Hex(t *testing.T, data []byte) string {
	t.Helper()
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestLoadCatalog(t *testing.T) {
	yamlDoc := []byte(`
cache_dir: /tmp/llmshield-models
models:
  - id: prompt-injection-fp32
    task: prompt_injection
    variant: fp32
    url: https://models.example.com/pi-fp32.bin
    checksum: abc123
    size_bytes: 1024
`)
	cat, err := LoadCatalog(yamlDoc)
	require.NoError(t, err)
	require.Equal(t, "/tmp/llmshield-models", cat.CacheDir)

	e, ok := cat.Entry(Key{Task: TaskPromptInjection, Variant: VariantFP32})
	require.True(t, ok)
	require.Equal(t, "prompt-injection-fp32", e.ID)
	require.EqualValues(t, 1024, e.SizeBytes)
}

func TestLoadCatalogRejectsDuplicateKey(t *testing.T) {
	yamlDoc := []byte(`
cache_dir: /tmp
models:
  - id: a
    task: toxicity
    variant: fp32
    url: file:///tmp/a.bin
    checksum: x
  - id: b
    task: toxicity
    variant: fp32
    url: file:///tmp/b.bin
    checksum: y
`)
	_, err := LoadCatalog(yamlDoc)
	require.Error(t, err)
	kind, ok := gwerrors.KindOf(err)
	require.True(t, ok)
	require.Equal(t, gwerrors.ConfigError, kind)
}

func TestEnsureAvailableDownloadsAndVerifiesViaFileURL(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "source-model.bin")
	payload := []byte("deterministic model weights")
	require.NoError(t, os.WriteFile(srcPath, payload, 0600))

	cacheDir := filepath.Join(dir, "cache")
	entry := Entry{
		ID:       "toxicity-fp32",
		Task:     TaskToxicity,
		Variant:  VariantFP32,
		URL:      "file://" + srcPath,
		Checksum: sha256Hex(t, payload),
	}
	cat := writeCatalog(t, cacheDir, entry)

	reg, err := New(cat, filepath.Join(dir, "meta.db"), 0, nil)
	require.NoError(t, err)
	defer reg.Close()

	path, err := reg.EnsureAvailable(context.Background(), Key{Task: TaskToxicity, Variant: VariantFP32})
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	// Second call should hit the recorded metadata and not error, even
	// though the destination file already exists.
	path2, err := reg.EnsureAvailable(context.Background(), Key{Task: TaskToxicity, Variant: VariantFP32})
	require.NoError(t, err)
	require.Equal(t, path, path2)
}

func TestEnsureAvailableChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "source-model.bin")
	payload := []byte("some weights")
	require.NoError(t, os.WriteFile(srcPath, payload, 0600))

	cacheDir := filepath.Join(dir, "cache")
	entry := Entry{
		ID:       "sentiment-fp16",
		Task:     TaskSentiment,
		Variant:  VariantFP16,
		URL:      "file://" + srcPath,
		Checksum: "0000000000000000000000000000000000000000000000000000000000000000",
	}
	cat := writeCatalog(t, cacheDir, entry)

	reg, err := New(cat, "", 0, nil)
	require.NoError(t, err)
	defer reg.Close()

	_, err = reg.EnsureAvailable(context.Background(), Key{Task: TaskSentiment, Variant: VariantFP16})
	require.Error(t, err)
	var gwErr *gwerrors.Error
	require.True(t, gwerrors.As(err, &gwErr))
	require.Equal(t, gwerrors.CauseChecksumMismatch, gwErr.Cause)
}

func TestEnsureAvailableUnknownKey(t *testing.T) {
	cat := writeCatalog(t, t.TempDir())
	reg, err := New(cat, "", 0, nil)
	require.NoError(t, err)
	defer reg.Close()

	_, err = reg.EnsureAvailable(context.Background(), Key{Task: TaskNER, Variant: VariantINT8})
	require.Error(t, err)
	kind, _ := gwerrors.KindOf(err)
	require.Equal(t, gwerrors.ModelError, kind)
}
