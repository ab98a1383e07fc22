package driver

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"riptide/internal/diag"
)

// Current schema version - increment when cachePayload format changes
const cacheSchemaVersion uint16 = 1

// ResultCache хранит результаты компиляции по хешу входа на диске.
// Thread-safe for concurrent access.
type ResultCache struct {
	mu  sync.RWMutex
	dir string
}

// cachePayload is the on-disk shape of a CompileResult. Durations are kept
// as milliseconds; sub-millisecond precision is not worth invalidating for.
type cachePayload struct {
	Schema    uint16
	Millis    int64
	Output    string
	HasOutput bool
	Problems  []diag.Problem
}

// OpenResultCache initializes and returns a disk cache at the standard location.
func OpenResultCache(app string) (*ResultCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, app)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &ResultCache{dir: dir}, nil
}

// OpenResultCacheAt uses an explicit directory instead of the XDG default.
func OpenResultCacheAt(dir string) (*ResultCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &ResultCache{dir: dir}, nil
}

func (c *ResultCache) pathFor(key [sha256.Size]byte) string {
	hexKey := hex.EncodeToString(key[:])
	// Подкаталог — чтобы кеш было удобно чистить руками.
	return filepath.Join(c.dir, "results", hexKey+".mp")
}

// Put serializes and writes a result to the disk cache.
func (c *ResultCache) Put(key [sha256.Size]byte, res *CompileResult) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		// После успешного Rename файла уже нет; это подчистка на случай ошибки.
		_ = os.Remove(f.Name())
	}()

	payload := cachePayload{
		Schema:    cacheSchemaVersion,
		Millis:    res.CompileDuration.Milliseconds(),
		Output:    res.Output,
		HasOutput: res.HasOutput,
		Problems:  res.Problems,
	}
	if err := msgpack.NewEncoder(f).Encode(&payload); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(f.Name(), p)
}

// Get reads a cached result. A missing entry or a schema mismatch is a
// clean miss, not an error.
func (c *ResultCache) Get(key [sha256.Size]byte) (*CompileResult, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer func() { _ = f.Close() }()

	var payload cachePayload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, false, err
	}
	if payload.Schema != cacheSchemaVersion {
		return nil, false, nil
	}
	return &CompileResult{
		Problems:        payload.Problems,
		Output:          payload.Output,
		HasOutput:       payload.HasOutput,
		CompileDuration: time.Duration(payload.Millis) * time.Millisecond,
	}, true, nil
}

// DropAll invalidates the cache, useful after format changes.
func (c *ResultCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// тривиально: переименуем каталог и удалим целиком
	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(old)
}
