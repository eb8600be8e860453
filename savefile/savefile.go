// Package savefile persists serialized world payloads into slot-addressed
// platform storage. Each slot stores the payload bytes plus a yaml metadata
// property carrying an id, the codec name, an xxhash checksum, and the save
// time; loading verifies both checksum and codec before handing the payload
// back. The package treats payloads as opaque, so anything the lens layer
// produces can be stored.
package savefile

import (
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/quasilyte/gdata/v2"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/worldlens/codec"
	"github.com/zeusync/worldlens/pkg/concurrent"
	"github.com/zeusync/worldlens/pkg/observability/log"
	"github.com/zeusync/worldlens/pkg/sequence"
)

const (
	saveObject = "saves"
	indexProp  = "index"

	defaultVerifyWorkers = 8
)

// Config configures a save manager.
type Config struct {
	// AppName namespaces the on-disk storage. Required.
	AppName string
	// Codec is the codec world payloads are written with. Its name is
	// recorded per slot and enforced on load. Defaults to codec.JSON.
	Codec codec.Codec
	// Logger receives structured save and load events. Defaults to a
	// no-op logger.
	Logger log.Log
	// VerifyWorkers bounds the goroutines Verify fans out to.
	VerifyWorkers int
}

// Manager reads and writes save slots.
type Manager struct {
	store   *gdata.Manager
	codec   codec.Codec
	log     log.Log
	workers int
}

// Open prepares slot storage under cfg.AppName.
func Open(cfg Config) (*Manager, error) {
	if cfg.AppName == "" {
		return nil, fmt.Errorf("app name must not be empty")
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.JSON{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Nop()
	}
	if cfg.VerifyWorkers <= 0 {
		cfg.VerifyWorkers = defaultVerifyWorkers
	}
	store, err := gdata.Open(gdata.Config{AppName: cfg.AppName})
	if err != nil {
		return nil, fmt.Errorf("failed to open save storage: %w", err)
	}
	return &Manager{store: store, codec: cfg.Codec, log: cfg.Logger, workers: cfg.VerifyWorkers}, nil
}

// Codec returns the codec the manager expects payloads to carry.
func (m *Manager) Codec() codec.Codec {
	return m.codec
}

// Save stores payload under slot, replacing any previous save there, and
// returns the written metadata.
func (m *Manager) Save(slot, label string, payload []byte) (Meta, error) {
	if slot == "" {
		return Meta{}, ErrEmptySlotName
	}
	meta := Meta{
		ID:       uuid.NewString(),
		Slot:     slot,
		Label:    label,
		Codec:    m.codec.Name(),
		Checksum: xxhash.Sum64(payload),
		Size:     len(payload),
		SavedAt:  time.Now().UTC(),
	}
	if err := m.store.SaveObjectProp(saveObject, slot+".data", payload); err != nil {
		return Meta{}, fmt.Errorf("failed to store slot %q: %w", slot, err)
	}
	rawMeta, err := yaml.Marshal(meta)
	if err != nil {
		return Meta{}, fmt.Errorf("failed to encode metadata for slot %q: %w", slot, err)
	}
	if err := m.store.SaveObjectProp(saveObject, slot+".meta", rawMeta); err != nil {
		return Meta{}, fmt.Errorf("failed to store metadata for slot %q: %w", slot, err)
	}
	if err := m.indexAdd(slot); err != nil {
		return Meta{}, err
	}
	m.log.Info("save slot written",
		log.String("slot", slot),
		log.Int("size", meta.Size),
		log.Uint64("checksum", meta.Checksum),
	)
	return meta, nil
}

// Load returns the payload stored under slot after checking it against the
// recorded checksum and codec.
func (m *Manager) Load(slot string) ([]byte, Meta, error) {
	meta, err := m.Peek(slot)
	if err != nil {
		return nil, Meta{}, err
	}
	payload, err := m.store.LoadObjectProp(saveObject, slot+".data")
	if err != nil {
		return nil, Meta{}, fmt.Errorf("failed to read slot %q: %w", slot, err)
	}
	if sum := xxhash.Sum64(payload); sum != meta.Checksum {
		return nil, Meta{}, fmt.Errorf("slot %q stored %d, computed %d: %w", slot, meta.Checksum, sum, ErrChecksumMismatch)
	}
	if meta.Codec != m.codec.Name() {
		return nil, Meta{}, fmt.Errorf("slot %q holds %s, manager expects %s: %w", slot, meta.Codec, m.codec.Name(), ErrCodecMismatch)
	}
	m.log.Debug("save slot read", log.String("slot", slot), log.Int("size", meta.Size))
	return payload, meta, nil
}

// Exists reports whether slot holds a save.
func (m *Manager) Exists(slot string) bool {
	return slot != "" && m.store.ObjectPropExists(saveObject, slot+".meta")
}

// Peek returns slot metadata without reading the payload.
func (m *Manager) Peek(slot string) (Meta, error) {
	if slot == "" {
		return Meta{}, ErrEmptySlotName
	}
	if !m.store.ObjectPropExists(saveObject, slot+".meta") {
		return Meta{}, fmt.Errorf("slot %q: %w", slot, ErrSlotNotFound)
	}
	raw, err := m.store.LoadObjectProp(saveObject, slot+".meta")
	if err != nil {
		return Meta{}, fmt.Errorf("failed to read metadata for slot %q: %w", slot, err)
	}
	var meta Meta
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return Meta{}, fmt.Errorf("failed to decode metadata for slot %q: %w", slot, err)
	}
	return meta, nil
}

// Delete removes slot's payload and metadata.
func (m *Manager) Delete(slot string) error {
	if slot == "" {
		return ErrEmptySlotName
	}
	if !m.store.ObjectPropExists(saveObject, slot+".meta") {
		return fmt.Errorf("slot %q: %w", slot, ErrSlotNotFound)
	}
	if err := m.store.DeleteObjectProp(saveObject, slot+".data"); err != nil {
		return fmt.Errorf("failed to delete slot %q: %w", slot, err)
	}
	if err := m.store.DeleteObjectProp(saveObject, slot+".meta"); err != nil {
		return fmt.Errorf("failed to delete metadata for slot %q: %w", slot, err)
	}
	if err := m.indexRemove(slot); err != nil {
		return err
	}
	m.log.Info("save slot deleted", log.String("slot", slot))
	return nil
}

// List returns metadata for every known slot, newest first. Slots present
// in the index but missing on disk are skipped.
func (m *Manager) List() ([]Meta, error) {
	slots, err := m.slots()
	if err != nil {
		return nil, err
	}
	metas := make([]Meta, 0, len(slots))
	for _, slot := range slots {
		meta, err := m.Peek(slot)
		if errors.Is(err, ErrSlotNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		metas = append(metas, meta)
	}
	return sequence.From(metas).
		Sort(func(a, b Meta) bool { return a.SavedAt.After(b.SavedAt) }).
		Collect(), nil
}

// VerifyResult reports one slot's integrity check.
type VerifyResult struct {
	Slot string
	Err  error
}

// Verify recomputes every known slot's checksum, fanning the reads out over
// a bounded worker set. The result keeps index order; Err is nil for intact
// slots.
func (m *Manager) Verify() ([]VerifyResult, error) {
	slots, err := m.slots()
	if err != nil {
		return nil, err
	}
	results := make([]VerifyResult, len(slots))
	idx := make([]int, len(slots))
	for i := range slots {
		idx[i] = i
	}
	err = concurrent.Limited(sequence.From(idx), m.workers, func(i int) error {
		results[i] = VerifyResult{Slot: slots[i], Err: m.verifySlot(slots[i])}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (m *Manager) verifySlot(slot string) error {
	meta, err := m.Peek(slot)
	if err != nil {
		return err
	}
	payload, err := m.store.LoadObjectProp(saveObject, slot+".data")
	if err != nil {
		return fmt.Errorf("failed to read slot %q: %w", slot, err)
	}
	if sum := xxhash.Sum64(payload); sum != meta.Checksum {
		return fmt.Errorf("slot %q stored %d, computed %d: %w", slot, meta.Checksum, sum, ErrChecksumMismatch)
	}
	return nil
}

func (m *Manager) slots() ([]string, error) {
	if !m.store.ObjectPropExists(saveObject, indexProp) {
		return nil, nil
	}
	raw, err := m.store.LoadObjectProp(saveObject, indexProp)
	if err != nil {
		return nil, fmt.Errorf("failed to read slot index: %w", err)
	}
	var slots []string
	if err := yaml.Unmarshal(raw, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slot index: %w", err)
	}
	return slots, nil
}

func (m *Manager) writeIndex(slots []string) error {
	ordered := sequence.From(slots).
		Distinct().
		Sort(func(a, b string) bool { return a < b }).
		Collect()
	raw, err := yaml.Marshal(ordered)
	if err != nil {
		return fmt.Errorf("failed to encode slot index: %w", err)
	}
	if err := m.store.SaveObjectProp(saveObject, indexProp, raw); err != nil {
		return fmt.Errorf("failed to store slot index: %w", err)
	}
	return nil
}

func (m *Manager) indexAdd(slot string) error {
	slots, err := m.slots()
	if err != nil {
		return err
	}
	if sequence.From(slots).Any(func(s string) bool { return s == slot }) {
		return nil
	}
	return m.writeIndex(append(slots, slot))
}

func (m *Manager) indexRemove(slot string) error {
	slots, err := m.slots()
	if err != nil {
		return err
	}
	return m.writeIndex(sequence.From(slots).
		Filter(func(s string) bool { return s != slot }).
		Collect())
}
