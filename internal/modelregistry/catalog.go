// Package modelregistry loads the declarative model catalog (spec.md §4.2,
// §6) and ensures individual model files are present and checksum-verified
// in a local cache directory, downloading them on demand.
package modelregistry

import (
	"fmt"
	"os"
	"os/user"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/llmshield/gateway/internal/gwerrors"
)

// Task names a model's inference task, per spec.md §3.
type Task string

// Recognized tasks. The catalog is not limited to these by construction —
// unknown task strings are accepted and simply never match a configured
// scanner — but these are the ones the bundled scanners look for.
const (
	TaskPromptInjection Task = "prompt_injection"
	TaskToxicity        Task = "toxicity"
	TaskSentiment       Task = "sentiment"
	TaskNER             Task = "ner"
)

// Variant names a model's numeric precision.
type Variant string

// Recognized variants.
const (
	VariantFP32 Variant = "fp32"
	VariantFP16 Variant = "fp16"
	VariantINT8 Variant = "int8"
)

// Key identifies one catalog entry.
type Key struct {
	Task    Task
	Variant Variant
}

func (k Key) String() string { return string(k.Task) + "/" + string(k.Variant) }

// Entry is one model catalog record, per spec.md §3 "Model catalog entry".
type Entry struct {
	ID        string  `yaml:"id"`
	Task      Task    `yaml:"task"`
	Variant   Variant `yaml:"variant"`
	URL       string  `yaml:"url"`
	Checksum  string  `yaml:"checksum"`
	SizeBytes int64   `yaml:"size_bytes"`
}

// catalogDoc mirrors the on-disk YAML document shape from spec.md §6.
type catalogDoc struct {
	CacheDir string  `yaml:"cache_dir"`
	Models   []Entry `yaml:"models"`
}

// Catalog is the immutable, loaded-once mapping from Key to Entry.
type Catalog struct {
	CacheDir string
	entries  map[Key]Entry
}

// LoadCatalog parses a YAML catalog document from data. Returns ConfigError
// on malformed YAML or a duplicate (task,variant) key (spec.md §3: "mapping
// from (task, variant) to exactly one entry — keys unique").
func LoadCatalog(data []byte) (*Catalog, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, gwerrors.Config("modelregistry.LoadCatalog", fmt.Sprintf("parse catalog: %v", err))
	}

	entries := make(map[Key]Entry, len(doc.Models))
	for _, e := range doc.Models {
		k := Key{Task: e.Task, Variant: e.Variant}
		if _, dup := entries[k]; dup {
			return nil, gwerrors.Config("modelregistry.LoadCatalog", fmt.Sprintf("duplicate catalog key %s", k))
		}
		entries[k] = e
	}

	return &Catalog{CacheDir: expandHome(doc.CacheDir), entries: entries}, nil
}

// Entry returns the catalog entry for key, if any.
func (c *Catalog) Entry(key Key) (Entry, bool) {
	e, ok := c.entries[key]
	return e, ok
}

// expandHome expands a leading "~" to the current user's home directory, per
// spec.md §6 ("cache_dir: string path; ~ expanded").
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	u, err := user.Current()
	if err != nil {
		if home := os.Getenv("HOME"); home != "" {
			return home + path[1:]
		}
		return path
	}
	return u.HomeDir + path[1:]
}
