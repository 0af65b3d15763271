// Package checkpoint persists pipeline progress as a single JSON document:
// the set of completed unit ids plus each unit's stored result. Every write
// is a full, atomic overwrite so the file is always a consistent snapshot,
// and a missing or corrupt file simply loads as an empty checkpoint.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"shuttle/internal/services"
)

// Entry is the stored result for one work unit.
type Entry struct {
	Page     int               `json:"page"`
	Original string            `json:"original"`
	Outputs  map[string]string `json:"outputs,omitempty"`
	Note     string            `json:"note,omitempty"`
	Final    string            `json:"final"`
}

// Checkpoint mirrors the on-disk structure: a sorted completed list and a
// result map keyed by stringified unit id.
type Checkpoint struct {
	Completed []int            `json:"completed"`
	Results   map[string]Entry `json:"results"`
}

// New returns an empty checkpoint.
func New() *Checkpoint {
	return &Checkpoint{Results: make(map[string]Entry)}
}

// Done reports whether the unit has a stored non-empty output. Units with an
// empty or absent final text are re-dispatched on resume.
func (c *Checkpoint) Done(id int) bool {
	entry, ok := c.Results[strconv.Itoa(id)]
	return ok && strings.TrimSpace(entry.Final) != ""
}

// Result returns the stored entry for the unit, if any.
func (c *Checkpoint) Result(id int) (Entry, bool) {
	entry, ok := c.Results[strconv.Itoa(id)]
	return entry, ok
}

// SetResult records the unit's result and marks it completed.
func (c *Checkpoint) SetResult(id int, entry Entry) {
	if c.Results == nil {
		c.Results = make(map[string]Entry)
	}
	c.Results[strconv.Itoa(id)] = entry
	for _, existing := range c.Completed {
		if existing == id {
			return
		}
	}
	c.Completed = append(c.Completed, id)
}

// CompletedCount returns how many units carry a completed marker.
func (c *Checkpoint) CompletedCount() int { return len(c.Completed) }

// DropFailed removes entries recorded as failures so a re-run processes them
// again, returning how many entries were dropped. Failures are entries whose
// note is set; successful units store an empty note.
func (c *Checkpoint) DropFailed() int {
	dropped := 0
	for key, entry := range c.Results {
		if strings.TrimSpace(entry.Note) == "" {
			continue
		}
		delete(c.Results, key)
		dropped++
	}
	if dropped == 0 {
		return 0
	}
	completed := c.Completed[:0]
	for _, id := range c.Completed {
		if _, ok := c.Results[strconv.Itoa(id)]; ok {
			completed = append(completed, id)
		}
	}
	c.Completed = completed
	return dropped
}

// Store reads and writes one checkpoint file.
type Store struct {
	path string
}

// NewStore binds a store to the checkpoint path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the checkpoint file location.
func (s *Store) Path() string { return s.path }

// Load reads the persisted checkpoint. A missing file or one that fails to
// decode yields an empty checkpoint, never an error: losing a resume point
// must not block a fresh run.
func (s *Store) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(), nil
		}
		return nil, services.Wrap(services.ErrCheckpointIO, "checkpoint", "load", s.path, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return New(), nil
	}
	if cp.Results == nil {
		cp.Results = make(map[string]Entry)
	}
	return &cp, nil
}

// Save persists the checkpoint atomically: marshal, write a temp file in the
// same directory, fsync, rename over the target. Any failure is a
// CheckpointIOError and must abort the run.
func (s *Store) Save(cp *Checkpoint) error {
	sort.Ints(cp.Completed)
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrCheckpointIO, "checkpoint", "encode", s.path, err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrCheckpointIO, "checkpoint", "ensure directory", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return services.Wrap(services.ErrCheckpointIO, "checkpoint", "create temp", dir, err)
	}
	tmpName := tmp.Name()
	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(services.Wrap(services.ErrCheckpointIO, "checkpoint", "write", tmpName, err))
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(services.Wrap(services.ErrCheckpointIO, "checkpoint", "sync", tmpName, err))
	}
	if err := tmp.Close(); err != nil {
		return cleanup(services.Wrap(services.ErrCheckpointIO, "checkpoint", "close", tmpName, err))
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return services.Wrap(services.ErrCheckpointIO, "checkpoint", "replace", fmt.Sprintf("%s -> %s", tmpName, s.path), err)
	}
	return nil
}
