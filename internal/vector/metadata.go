// File path: internal/vector/metadata.go
package vector

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrSlotNotFound reports a slot the index returned but the metadata file
// does not describe.
var ErrSlotNotFound = errors.New("no metadata for vector slot")

// Record describes the passage stored at one vector slot.
type Record struct {
	SKU          string `json:"sku"`
	Text         string `json:"text"`
	SectionTitle string `json:"section_title,omitempty"`
	Citations    []int  `json:"citations,omitempty"`
}

// Metadata maps vector slots to passage records; element i describes slot i.
type Metadata struct {
	records []Record
}

func NewMetadata(records []Record) *Metadata {
	return &Metadata{records: records}
}

// LoadMetadata reads a JSON array of records.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return &Metadata{records: records}, nil
}

func (m *Metadata) Len() int {
	if m == nil {
		return 0
	}
	return len(m.records)
}

// Lookup returns the record for slot or ErrSlotNotFound.
func (m *Metadata) Lookup(slot int) (Record, error) {
	if m == nil || slot < 0 || slot >= len(m.records) {
		return Record{}, fmt.Errorf("%w: %d", ErrSlotNotFound, slot)
	}
	return m.records[slot], nil
}

// Records exposes every record in slot order. Callers must not modify it.
func (m *Metadata) Records() []Record {
	if m == nil {
		return nil
	}
	return m.records
}
