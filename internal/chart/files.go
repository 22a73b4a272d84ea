package chart

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/segmentio/ksuid"

	"dataportal/internal/logger"
)

var ErrChartNotFound = errors.New("chart not found")

const filenameFormat = "chart-%s.png"

// FileStore keeps rendered charts as temp files named chart-<id>.png, with
// recently written charts also held in memory.
type FileStore struct {
	dir   string
	cache *ristretto.Cache[string, []byte]
	lggr  logger.Logger
}

// NewFileStore stores charts in dir, or in the system temp directory when
// dir is empty. cacheBytes bounds the in-memory copies.
func NewFileStore(dir string, cacheBytes int64, lggr logger.Logger) (*FileStore, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create chart directory: %w", err)
	}
	if cacheBytes <= 0 {
		cacheBytes = 64 << 20
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 10_000,
		MaxCost:     cacheBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chart cache: %w", err)
	}

	return &FileStore{dir: dir, cache: cache, lggr: lggr.Named("ChartFiles")}, nil
}

// NewID returns a random, time ordered chart id.
func NewID() string {
	return ksuid.New().String()
}

// Path is the temp file of a chart id. Ids that are not ksuids are
// rejected so that a request cannot name other files.
func (s *FileStore) Path(id string) (string, error) {
	if _, err := ksuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: %q", ErrChartNotFound, id)
	}
	return filepath.Join(s.dir, fmt.Sprintf(filenameFormat, id)), nil
}

func (s *FileStore) Write(id string, png []byte) (string, error) {
	path, err := s.Path(id)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, png, 0o600); err != nil {
		return "", fmt.Errorf("failed to write chart: %w", err)
	}
	s.cache.Set(id, png, int64(len(png)))
	s.cache.Wait()
	return path, nil
}

func (s *FileStore) Read(id string) ([]byte, error) {
	if png, ok := s.cache.Get(id); ok {
		return png, nil
	}
	path, err := s.Path(id)
	if err != nil {
		return nil, err
	}
	png, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrChartNotFound, id)
		}
		return nil, fmt.Errorf("failed to read chart: %w", err)
	}
	s.cache.Set(id, png, int64(len(png)))
	return png, nil
}

// Cleanup removes chart files last written before now minus ttl and
// returns how many were removed.
func (s *FileStore) Cleanup(ttl time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list chart directory: %w", err)
	}

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "chart-") || !strings.HasSuffix(name, ".png") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.lggr.Warnw("Failed to remove chart file", "file", name, "err", err)
			continue
		}
		s.cache.Del(strings.TrimSuffix(strings.TrimPrefix(name, "chart-"), ".png"))
		removed++
	}
	return removed, nil
}

func (s *FileStore) Close() {
	s.cache.Close()
}
