package resource

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
)

// Stats describes the cache.
type Stats struct {
	Dir    string
	Files  int
	Bytes  int
	Hits   uint64
	Misses uint64
}

// FileSource loads files below a root directory.
type FileSource struct {
	cache  map[string][]byte
	logger *zap.Logger
	dir    string
	limit  int
	hits   atomic.Uint64
	misses atomic.Uint64
	mu     sync.RWMutex
}

// NewFileSource serves files below dir, caching at most limit of them.
func NewFileSource(dir string, limit int, logger *zap.Logger) (*FileSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseResource, errors.KindInvalidArgument, err, "resolve resource dir")
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, errors.New(errors.PhaseResource, errors.KindNotFound).
			Path(abs).
			Cause(err).
			Detail("resource dir is not a directory").
			Build()
	}
	return &FileSource{
		cache:  make(map[string][]byte),
		logger: logger,
		dir:    abs,
		limit:  limit,
	}, nil
}

// Dir returns the absolute root directory.
func (s *FileSource) Dir() string { return s.dir }

// inside reports whether path is dir or below it.
func inside(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// Resolve maps name to an absolute path inside the root.
func (s *FileSource) Resolve(name string) (string, error) {
	if name == "" {
		return "", errors.InvalidArgument(errors.PhaseResource, "empty resource name", name)
	}
	path := filepath.Join(s.dir, name)
	if !inside(path, s.dir) || path == s.dir {
		return "", errors.InvalidArgument(errors.PhaseResource, "resource name escapes the resource dir", name)
	}
	return path, nil
}

// Load returns the contents of name. The returned slice is shared with the
// cache and must not be modified.
func (s *FileSource) Load(ctx context.Context, name string) ([]byte, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}
	key := filepath.ToSlash(strings.TrimPrefix(path, s.dir+string(filepath.Separator)))

	s.mu.RLock()
	data, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		s.hits.Add(1)
		return data, nil
	}
	s.misses.Add(1)

	data, err = os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.NotFound(errors.PhaseResource, "resource", name)
		}
		return nil, errors.New(errors.PhaseResource, errors.KindInternal).
			Path(path).
			Cause(err).
			Detail("read resource").
			Build()
	}

	s.mu.Lock()
	if len(s.cache) < s.limit {
		s.cache[key] = data
	}
	s.mu.Unlock()

	s.logger.Debug("resource read", zap.String("name", key), zap.Int("bytes", len(data)))
	return data, nil
}

// Invalidate drops name from the cache.
func (s *FileSource) Invalidate(name string) {
	s.mu.Lock()
	delete(s.cache, filepath.ToSlash(name))
	s.mu.Unlock()
}

// Clear drops every cached entry.
func (s *FileSource) Clear() {
	s.mu.Lock()
	s.cache = make(map[string][]byte)
	s.mu.Unlock()
	s.logger.Debug("resource cache cleared")
}

// Stats returns cache statistics.
func (s *FileSource) Stats() Stats {
	s.mu.RLock()
	st := Stats{Dir: s.dir, Files: len(s.cache)}
	for _, data := range s.cache {
		st.Bytes += len(data)
	}
	s.mu.RUnlock()
	st.Hits = s.hits.Load()
	st.Misses = s.misses.Load()
	return st
}

// Watch invalidates cache entries for files that change in the root
// directory. Subdirectories are not watched. The returned stop function
// ends the watch.
func (s *FileSource) Watch() (stop func() error, err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseResource, errors.KindInternal, err, "create watcher")
	}
	if err := w.Add(s.dir); err != nil {
		_ = w.Close()
		return nil, errors.Wrap(errors.PhaseResource, errors.KindInternal, err, "watch resource dir")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				rel, err := filepath.Rel(s.dir, ev.Name)
				if err != nil {
					continue
				}
				s.Invalidate(rel)
				s.logger.Debug("resource changed", zap.String("name", rel), zap.Stringer("op", ev.Op))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("resource watcher error", zap.Error(err))
			}
		}
	}()

	return func() error {
		err := w.Close()
		<-done
		return err
	}, nil
}
