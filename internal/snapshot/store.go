// Package snapshot implements the on-disk layout of per-game meta and
// numbered dump slots described in spec §3 and §4.6: atomic meta writes,
// rolling retention, slot enumeration.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gopkg.in/ini.v1"
)

// Meta is the per-game identity persisted at <statePath>/<id>/meta.
type Meta struct {
	ID         uint64 `ini:"id"`
	Name       string `ini:"name"`
	Definition string `ini:"definition"`
	Created    int64  `ini:"created"`
}

// Store is a thin wrapper over the state directory on disk.
type Store struct {
	basePath string
}

// NewStore roots a Store at basePath (the configured state.save_path).
func NewStore(basePath string) *Store {
	return &Store{basePath: basePath}
}

func (s *Store) gameDir(id uint64) string {
	return filepath.Join(s.basePath, strconv.FormatUint(id, 10))
}

func (s *Store) metaPath(id uint64) string {
	return filepath.Join(s.gameDir(id), "meta")
}

func (s *Store) slotDir(id uint64, slot int) string {
	return filepath.Join(s.gameDir(id), strconv.Itoa(slot))
}

// WriteMeta atomically writes the ini-format meta file: write to a temp
// file in the same directory, then rename over the destination.
func (s *Store) WriteMeta(m Meta) error {
	dir := s.gameDir(m.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: mkdir %s: %w", dir, err)
	}

	cfg := ini.Empty()
	section := cfg.Section("")
	section.Key("id").SetValue(strconv.FormatUint(m.ID, 10))
	section.Key("name").SetValue(m.Name)
	section.Key("definition").SetValue(m.Definition)
	section.Key("created").SetValue(strconv.FormatInt(m.Created, 10))

	tmp := s.metaPath(m.ID) + ".tmp"
	if err := cfg.SaveTo(tmp); err != nil {
		return fmt.Errorf("snapshot: write meta: %w", err)
	}
	if err := os.Rename(tmp, s.metaPath(m.ID)); err != nil {
		return fmt.Errorf("snapshot: rename meta: %w", err)
	}
	return nil
}

// ReadMeta loads the ini-format meta file for id.
func (s *Store) ReadMeta(id uint64) (Meta, error) {
	cfg, err := ini.Load(s.metaPath(id))
	if err != nil {
		return Meta{}, fmt.Errorf("snapshot: read meta: %w", err)
	}
	var m Meta
	if err := cfg.Section("").MapTo(&m); err != nil {
		return Meta{}, fmt.Errorf("snapshot: parse meta: %w", err)
	}
	return m, nil
}

// ExistingSlots lists the numbered slot directories for id, ascending.
func (s *Store) ExistingSlots(id uint64) ([]int, error) {
	entries, err := os.ReadDir(s.gameDir(id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: read game dir: %w", err)
	}

	var slots []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		slots = append(slots, n)
	}
	sort.Ints(slots)
	return slots, nil
}

// NextSlot returns max(existing)+1, or 0 if id has no slots yet.
func (s *Store) NextSlot(id uint64) (int, error) {
	slots, err := s.ExistingSlots(id)
	if err != nil {
		return 0, err
	}
	if len(slots) == 0 {
		return 0, nil
	}
	return slots[len(slots)-1] + 1, nil
}

// LatestSlot returns the numerically highest existing slot for id.
func (s *Store) LatestSlot(id uint64) (int, bool, error) {
	slots, err := s.ExistingSlots(id)
	if err != nil {
		return 0, false, err
	}
	if len(slots) == 0 {
		return 0, false, nil
	}
	return slots[len(slots)-1], true, nil
}

// WriteSlot creates <id>/<slot>/ and writes timestamp, format, and game.
func (s *Store) WriteSlot(id uint64, slot int, timestamp int64, format string, payload []byte) error {
	dir := s.slotDir(id, slot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: mkdir slot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "timestamp"), []byte(strconv.FormatInt(timestamp, 10)), 0o644); err != nil {
		return fmt.Errorf("snapshot: write timestamp: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "format"), []byte(format), 0o644); err != nil {
		return fmt.Errorf("snapshot: write format: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "game"), payload, 0o644); err != nil {
		return fmt.Errorf("snapshot: write game payload: %w", err)
	}
	return nil
}

// ReadSlot reads a slot's format and payload. ok is false if the slot
// directory does not exist.
func (s *Store) ReadSlot(id uint64, slot int) (format string, payload []byte, ok bool, err error) {
	dir := s.slotDir(id, slot)
	if _, statErr := os.Stat(dir); os.IsNotExist(statErr) {
		return "", nil, false, nil
	}

	fb, err := os.ReadFile(filepath.Join(dir, "format"))
	if err != nil {
		return "", nil, false, fmt.Errorf("snapshot: read format: %w", err)
	}
	gb, err := os.ReadFile(filepath.Join(dir, "game"))
	if err != nil {
		return "", nil, false, fmt.Errorf("snapshot: read game payload: %w", err)
	}
	return string(fb), gb, true, nil
}

// DeleteSlot removes one numbered slot directory.
func (s *Store) DeleteSlot(id uint64, slot int) error {
	return os.RemoveAll(s.slotDir(id, slot))
}

// DeleteGame removes the whole on-disk directory for id (meta plus every
// slot), used when destroyDump is requested.
func (s *Store) DeleteGame(id uint64) error {
	return os.RemoveAll(s.gameDir(id))
}

// EnforceRetention deletes the oldest slots for id so that at most max
// remain, leaving the max most recent. max <= 0 means unlimited.
func (s *Store) EnforceRetention(id uint64, max int) error {
	if max <= 0 {
		return nil
	}
	slots, err := s.ExistingSlots(id)
	if err != nil {
		return err
	}
	if len(slots) <= max {
		return nil
	}
	for _, slot := range slots[:len(slots)-max] {
		if err := s.DeleteSlot(id, slot); err != nil {
			return err
		}
	}
	return nil
}

// GameIDs lists every game id directory under the state path.
func (s *Store) GameIDs() ([]uint64, error) {
	entries, err := os.ReadDir(s.basePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: read state dir: %w", err)
	}

	var ids []uint64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := strconv.ParseUint(e.Name(), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
