package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/pratik-mahalle/panelbot/internal/domain/cleanup"
	"github.com/pratik-mahalle/panelbot/internal/pkg/errors"
	"github.com/pratik-mahalle/panelbot/internal/pkg/logger"
	"github.com/pratik-mahalle/panelbot/internal/pkg/validator"
)

// TaskStore keeps the cleanup task registry in a single file, an object
// keyed by task id. Files ending in .yaml or .yml are YAML, anything else
// is JSON.
type TaskStore struct {
	mu        sync.Mutex
	path      string
	yaml      bool
	validator *validator.Validator
	logger    *logger.Logger
	// rejected holds the raw entries Load could not accept, keyed by id.
	// Save writes them back unchanged.
	rejected map[string]interface{}
}

// NewTaskStore creates a store backed by path
func NewTaskStore(path string, log *logger.Logger) *TaskStore {
	ext := strings.ToLower(filepath.Ext(path))
	if log == nil {
		log = logger.Nop()
	}
	return &TaskStore{
		path:      path,
		yaml:      ext == ".yaml" || ext == ".yml",
		validator: validator.New(),
		logger:    log.Component("task_store"),
		rejected:  make(map[string]interface{}),
	}
}

// Path returns the backing file path
func (s *TaskStore) Path() string { return s.path }

// Rejected returns the ids of entries the last Load could not accept
func (s *TaskStore) Rejected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.rejected))
	for id := range s.rejected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// taskEntry is one undecoded task. raw is the original JSON or YAML
// value, kept so a rejected entry can be written back as it was.
type taskEntry struct {
	raw    interface{}
	decode func(*taskRecord) error
}

// Load reads every task. Entries that fail to decode or validate are
// logged, left out of the result and preserved in the file by Save.
func (s *TaskStore) Load(ctx context.Context) ([]*cleanup.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rejected = make(map[string]interface{})

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.logger.With("path", s.path).Info("No task file found, starting with an empty registry")
		return []*cleanup.Task{}, nil
	}
	if err != nil {
		return nil, errors.StorageError("Failed to read task file", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []*cleanup.Task{}, nil
	}

	entries, err := s.decodeEntries(data)
	if err != nil {
		return nil, errors.StorageError("Failed to parse task file", err)
	}

	tasks := make([]*cleanup.Task, 0, len(entries))
	for id, entry := range entries {
		var rec taskRecord
		if err := entry.decode(&rec); err != nil {
			s.logger.With("task_id", id).WarnWithErr(err, "Keeping undecodable task out of the registry")
			s.rejected[id] = entry.raw
			continue
		}
		t := rec.toDomain(id)
		if err := s.validator.Check("task", t); err != nil {
			s.logger.With("task_id", id).WarnWithErr(err, "Keeping invalid task out of the registry")
			s.rejected[id] = entry.raw
			continue
		}
		tasks = append(tasks, t)
	}

	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})

	s.logger.WithFields(map[string]interface{}{
		"path":     s.path,
		"tasks":    len(tasks),
		"rejected": len(s.rejected),
	}).Info("Loaded cleanup tasks")
	return tasks, nil
}

// decodeEntries splits the file into per-task entries keyed by id
func (s *TaskStore) decodeEntries(data []byte) (map[string]taskEntry, error) {
	out := make(map[string]taskEntry)
	if s.yaml {
		var doc map[string]yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		for id, node := range doc {
			n := node
			out[id] = taskEntry{
				raw:    &n,
				decode: func(r *taskRecord) error { return n.Decode(r) },
			}
		}
		return out, nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	for id, msg := range doc {
		msg := msg
		out[id] = taskEntry{
			raw:    msg,
			decode: func(r *taskRecord) error { return json.Unmarshal(msg, r) },
		}
	}
	return out, nil
}

// Save atomically replaces the file: write a temp file in the same
// directory, fsync it, then rename it over the target. Entries rejected by
// the last Load are carried over unless a task now uses their id.
func (s *TaskStore) Save(ctx context.Context, tasks []*cleanup.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := make(map[string]interface{}, len(tasks)+len(s.rejected))
	for id, raw := range s.rejected {
		doc[id] = raw
	}
	for _, t := range tasks {
		delete(s.rejected, t.ID)
		doc[t.ID] = t
	}

	var (
		data []byte
		err  error
	)
	if s.yaml {
		data, err = yaml.Marshal(doc)
	} else {
		data, err = json.MarshalIndent(doc, "", "  ")
	}
	if err != nil {
		return errors.StorageError("Failed to encode tasks", err)
	}

	if err := writeAtomic(s.path, data); err != nil {
		return errors.StorageError("Failed to write task file", err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
