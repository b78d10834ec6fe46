package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"atelier/pkg/logger"
	"atelier/pkg/models"
	"atelier/pkg/telemetry"
)

// ErrNotFound is returned when a referenced project, message or fragment
// does not exist.
var ErrNotFound = errors.New("not found")

var db *pebble.DB

// seq reduces key collisions when multiple messages share the same
// nanosecond timestamp.
var seq uint64

// Open opens (or creates) a Pebble database at the given path and keeps a
// global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Log.Info("opening_pebble_db", zap.String("path", path))
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Log.Error("pebble_open_failed", zap.String("path", path), zap.Error(err))
		return err
	}
	logger.Log.Info("pebble_opened", zap.String("path", path))
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Log.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func metaKey(projectID string) []byte {
	return []byte("project:" + projectID + ":meta")
}

func msgPrefix(projectID string) []byte {
	return []byte("project:" + projectID + ":msg:")
}

func fragKey(fragmentID string) []byte {
	return []byte("fragment:" + fragmentID)
}

// SaveProject stores project metadata under a reserved key.
func SaveProject(p models.Project) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}
	if err := db.Set(metaKey(p.ID), data, pebble.Sync); err != nil {
		logger.Log.Error("save_project_failed", zap.String("project", p.ID), zap.Error(err))
		return err
	}
	logger.Log.Info("project_saved", zap.String("project", p.ID))
	return nil
}

// GetProject returns the stored project for the given ID, or ErrNotFound.
func GetProject(projectID string) (models.Project, error) {
	var p models.Project
	if db == nil {
		return p, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get(metaKey(projectID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return p, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
		}
		return p, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &p); err != nil {
		return p, fmt.Errorf("invalid project metadata: %w", err)
	}
	return p, nil
}

// ListProjects returns all saved projects, including soft-deleted ones.
func ListProjects() ([]models.Project, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("project:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Project
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if !bytes.HasSuffix(iter.Key(), []byte(":meta")) {
			continue
		}
		var p models.Project
		if err := json.Unmarshal(iter.Value(), &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, iter.Error()
}

// AppendMessage appends a message to a project's timeline under a key with a
// sortable timestamp prefix. When the message carries a fragment, the
// message entry, the fragment index entry and the project activity bump are
// committed in a single batch so no reader ever observes a partial turn.
func AppendMessage(m models.Message) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	if m.TS == 0 {
		m.TS = time.Now().UTC().UnixNano()
	}
	s := atomic.AddUint64(&seq, 1)
	key := fmt.Sprintf("project:%s:msg:%020d-%06d", m.Project, m.TS, s)

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	b := db.NewBatch()
	defer b.Close()
	if err := b.Set([]byte(key), data, nil); err != nil {
		return err
	}
	if m.Fragment != nil {
		fdata, err := json.Marshal(m.Fragment)
		if err != nil {
			return fmt.Errorf("failed to marshal fragment: %w", err)
		}
		if err := b.Set(fragKey(m.Fragment.ID), fdata, nil); err != nil {
			return err
		}
	}
	// bump project activity in the same commit
	if p, perr := GetProject(m.Project); perr == nil {
		p.UpdatedTS = m.TS
		if pdata, merr := json.Marshal(p); merr == nil {
			if err := b.Set(metaKey(p.ID), pdata, nil); err != nil {
				return err
			}
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Log.Error("append_message_failed", zap.String("project", m.Project), zap.String("key", key), zap.Error(err))
		return err
	}
	telemetry.MessagesAppended.WithLabelValues(string(m.Role)).Inc()
	if m.Fragment != nil {
		telemetry.FragmentsAttached.Inc()
	}
	logger.Log.Info("message_appended",
		zap.String("project", m.Project),
		zap.String("msg_id", m.ID),
		zap.String("role", string(m.Role)),
		zap.Bool("fragment", m.Fragment != nil))
	return nil
}

// ListMessages returns all messages for a project in insertion order, each
// with its fragment inlined when present.
func ListMessages(projectID string) ([]models.Message, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := msgPrefix(projectID)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []models.Message
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Log.Error("list_messages_invalid_json", zap.ByteString("key", iter.Key()), zap.Error(err))
			return nil, fmt.Errorf("invalid message JSON: %w", err)
		}
		out = append(out, m)
	}
	return out, iter.Error()
}

// GetFragment returns a fragment by ID, or ErrNotFound.
func GetFragment(fragmentID string) (models.Fragment, error) {
	var f models.Fragment
	if db == nil {
		return f, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get(fragKey(fragmentID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return f, fmt.Errorf("fragment %s: %w", fragmentID, ErrNotFound)
		}
		return f, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &f); err != nil {
		return f, fmt.Errorf("invalid fragment JSON: %w", err)
	}
	return f, nil
}

// SoftDeleteProject marks the project as deleted. The message timeline stays
// untouched until the retention runner purges it.
func SoftDeleteProject(projectID string) error {
	p, err := GetProject(projectID)
	if err != nil {
		return err
	}
	p.Deleted = true
	p.DeletedTS = time.Now().UTC().UnixNano()
	if err := SaveProject(p); err != nil {
		return err
	}
	logger.Log.Info("project_soft_deleted", zap.String("project", projectID))
	return nil
}

// PurgeProject removes a project's metadata, its message timeline and all
// fragment index entries owned by its messages.
func PurgeProject(projectID string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	msgs, err := ListMessages(projectID)
	if err != nil {
		return err
	}
	b := db.NewBatch()
	defer b.Close()
	for _, m := range msgs {
		if m.Fragment != nil {
			if err := b.Delete(fragKey(m.Fragment.ID), nil); err != nil {
				return err
			}
		}
	}
	prefix := msgPrefix(projectID)
	// end bound: prefix with last byte bumped
	end := append(append([]byte(nil), prefix...), 0xff)
	if err := b.DeleteRange(prefix, end, nil); err != nil {
		return err
	}
	if err := b.Delete(metaKey(projectID), nil); err != nil {
		return err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Log.Error("purge_project_failed", zap.String("project", projectID), zap.Error(err))
		return err
	}
	telemetry.ProjectsPurged.Inc()
	logger.Log.Info("project_purged", zap.String("project", projectID), zap.Int("messages", len(msgs)))
	return nil
}

// DiskUsage reports the estimated on-disk size of the store.
func DiskUsage() uint64 {
	if db == nil {
		return 0
	}
	m := db.Metrics()
	if m == nil {
		return 0
	}
	return m.DiskSpaceUsage()
}
