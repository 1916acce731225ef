// Package trace records named data sets against virtual time and replays them.
//
// A trace file is a stream of YAML documents. The first document is a Header;
// every following one is either a time marker or a tagged record. Markers
// appear only when the clock has moved since the previous record, so times are
// non-decreasing through the file. Files may be gzip-compressed.
package trace

import "github.com/google/uuid"

// Header is the first document of every trace file.
type Header struct {
	RunID string `yaml:"run_id"`
	Seed  int64  `yaml:"seed"`
}

// NewHeader returns a header with a fresh run id.
func NewHeader(seed int64) Header {
	return Header{RunID: uuid.NewString(), Seed: seed}
}

// record is the on-disk shape of a single document after the header.
type record struct {
	Time   *int64 `yaml:"time,omitempty"`
	Tag    string `yaml:"tag,omitempty"`
	Values []any  `yaml:"values,omitempty,flow"`
}

// Entry is one logged record reconstructed by the Reader.
type Entry struct {
	Time   int64
	Tag    string
	Values []any
}
