package modelregistry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	bolt "go.etcd.io/bbolt"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/llmshield/gateway/internal/gwerrors"
	"github.com/llmshield/gateway/internal/logger"
)

var metadataBucket = []byte("model_metadata")

// verifiedRecord is what Registry persists to the bbolt metadata index once
// a file has been downloaded and checksum-verified, so a later process
// restart can skip re-hashing an unchanged file (spec.md §4.2 permits this:
// verification is only required "if present", and an unchanged verified
// record satisfies that).
type verifiedRecord struct {
	LocalPath string `json:"local_path"`
	Checksum  string `json:"checksum"`
	SizeBytes int64  `json:"size_bytes"`
}

// Registry resolves catalog entries to verified local file paths,
// downloading and checksum-verifying as needed.
type Registry struct {
	catalog   *Catalog
	meta      *bolt.DB // nil = no metadata index (re-verify every call)
	limiter   *rate.Limiter
	sf        singleflight.Group
	log       *logger.Logger
	httpClient *http.Client
}

// New constructs a Registry over catalog. metaDBPath, if non-empty, opens a
// bbolt metadata index at that path; an empty path disables the index
// (every EnsureAvailable call re-hashes the file on disk, which is still
// correct, just slower). maxDownloadsPerSec bounds concurrent/repeated
// downloads via a token bucket; 0 means unlimited.
func New(catalog *Catalog, metaDBPath string, maxDownloadsPerSec float64, log *logger.Logger) (*Registry, error) {
	if log == nil {
		log = logger.New("MODELREGISTRY", "info")
	}
	r := &Registry{catalog: catalog, log: log, httpClient: &http.Client{}}

	if maxDownloadsPerSec > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(maxDownloadsPerSec), 1)
	}

	if metaDBPath != "" {
		db, err := bolt.Open(metaDBPath, 0600, nil)
		if err != nil {
			return nil, gwerrors.Model("modelregistry.New", gwerrors.CauseIO, err)
		}
		if err := db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(metadataBucket)
			return err
		}); err != nil {
			db.Close() //nolint:errcheck
			return nil, gwerrors.Model("modelregistry.New", gwerrors.CauseIO, err)
		}
		r.meta = db
	}

	return r, nil
}

// Close releases the metadata index, if any.
func (r *Registry) Close() error {
	if r.meta == nil {
		return nil
	}
	return r.meta.Close()
}

// Entry looks up a catalog entry.
func (r *Registry) Entry(key Key) (Entry, bool) {
	return r.catalog.Entry(key)
}

// EnsureAvailable resolves key to a verified local file path, downloading it
// if absent or checksum-mismatched, per spec.md §4.2. Concurrent callers for
// the same key never duplicate the download (golang.org/x/sync/singleflight).
func (r *Registry) EnsureAvailable(ctx context.Context, key Key) (string, error) {
	entry, ok := r.catalog.Entry(key)
	if !ok {
		return "", gwerrors.Model("registry.EnsureAvailable", gwerrors.CauseNotFound, fmt.Errorf("no catalog entry for %s", key))
	}

	v, err, _ := r.sf.Do(key.String(), func() (any, error) {
		return r.ensureLocked(ctx, entry)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Registry) ensureLocked(ctx context.Context, entry Entry) (string, error) {
	localPath := filepath.Join(r.catalog.CacheDir, entry.ID, finalSegment(entry.URL))

	if rec, ok := r.lookupVerified(entry); ok {
		if fi, statErr := os.Stat(rec.LocalPath); statErr == nil && fi.Size() == rec.SizeBytes {
			return rec.LocalPath, nil
		}
		// Recorded file vanished or changed size; fall through to re-verify/re-fetch.
	}

	if sum, err := sha256File(localPath); err == nil {
		if sum == entry.Checksum {
			r.recordVerified(entry, localPath)
			return localPath, nil
		}
		r.log.Warnf("checksum_mismatch", "id=%s local checksum %s != catalog %s, re-downloading", entry.ID, sum, entry.Checksum)
	}

	if err := r.fetch(ctx, entry, localPath); err != nil {
		return "", err
	}

	sum, err := sha256File(localPath)
	if err != nil {
		return "", gwerrors.Model("registry.EnsureAvailable", gwerrors.CauseIO, err)
	}
	if sum != entry.Checksum {
		return "", gwerrors.Model("registry.EnsureAvailable", gwerrors.CauseChecksumMismatch,
			fmt.Errorf("id=%s expected %s got %s", entry.ID, entry.Checksum, sum))
	}

	r.recordVerified(entry, localPath)
	return localPath, nil
}

// fetch downloads entry.URL to localPath via http(s):// or file://, writing
// atomically (temp file in the destination directory, then os.Rename) per
// spec.md §4.2 — the same atomic-write idiom as the teacher's
// management.DomainRegistry.persist.
func (r *Registry) fetch(ctx context.Context, entry Entry, localPath string) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return gwerrors.Model("registry.fetch", gwerrors.CauseDownloadFailed, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return gwerrors.Model("registry.fetch", gwerrors.CauseIO, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(localPath), ".download-*.tmp")
	if err != nil {
		return gwerrors.Model("registry.fetch", gwerrors.CauseIO, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op once renamed away

	var srcErr error
	switch {
	case strings.HasPrefix(entry.URL, "http://"), strings.HasPrefix(entry.URL, "https://"):
		srcErr = r.fetchHTTP(ctx, entry.URL, tmp)
	case strings.HasPrefix(entry.URL, "file://"):
		srcErr = fetchFile(strings.TrimPrefix(entry.URL, "file://"), tmp)
	default:
		srcErr = fmt.Errorf("unsupported scheme in url %q", entry.URL)
	}
	closeErr := tmp.Close()
	if srcErr != nil {
		return gwerrors.Model("registry.fetch", gwerrors.CauseDownloadFailed, srcErr)
	}
	if closeErr != nil {
		return gwerrors.Model("registry.fetch", gwerrors.CauseIO, closeErr)
	}

	if err := os.Rename(tmpName, localPath); err != nil {
		return gwerrors.Model("registry.fetch", gwerrors.CauseIO, err)
	}
	r.log.Infof("download_complete", "id=%s path=%s", entry.ID, localPath)
	return nil
}

func (r *Registry) fetchHTTP(ctx context.Context, url string, dst io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}
	_, err = io.Copy(dst, resp.Body)
	return err
}

func fetchFile(path string, dst io.Writer) error {
	src, err := os.Open(path) //nolint:gosec // path comes from trusted catalog config, not user input
	if err != nil {
		return err
	}
	defer src.Close() //nolint:errcheck
	_, err = io.Copy(dst, src)
	return err
}

func (r *Registry) lookupVerified(entry Entry) (verifiedRecord, bool) {
	if r.meta == nil {
		return verifiedRecord{}, false
	}
	var rec verifiedRecord
	found := false
	_ = r.meta.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(metadataBucket)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(entry.ID))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &rec); err == nil {
			found = rec.Checksum == entry.Checksum
		}
		return nil
	})
	return rec, found
}

func (r *Registry) recordVerified(entry Entry, localPath string) {
	if r.meta == nil {
		return
	}
	size := entry.SizeBytes
	if fi, err := os.Stat(localPath); err == nil {
		size = fi.Size()
	}
	rec := verifiedRecord{LocalPath: localPath, Checksum: entry.Checksum, SizeBytes: size}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := r.meta.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(metadataBucket)
		if b == nil {
			return fmt.Errorf("metadata bucket missing")
		}
		return b.Put([]byte(entry.ID), data)
	}); err != nil {
		r.log.Warnf("metadata_write_failed", "id=%s err=%v", entry.ID, err)
	}
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path is derived from trusted catalog config
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func finalSegment(url string) string {
	idx := strings.LastIndexByte(url, '/')
	if idx == -1 || idx == len(url)-1 {
		return "model.bin"
	}
	return url[idx+1:]
}
