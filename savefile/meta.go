package savefile

import "time"

// Meta describes one stored save slot. It is persisted as a yaml property
// next to the payload and is the source of truth for integrity checks.
type Meta struct {
	ID       string    `yaml:"id"`
	Slot     string    `yaml:"slot"`
	Label    string    `yaml:"label,omitempty"`
	Codec    string    `yaml:"codec"`
	Checksum uint64    `yaml:"checksum"`
	Size     int       `yaml:"size"`
	SavedAt  time.Time `yaml:"savedAt"`
}
