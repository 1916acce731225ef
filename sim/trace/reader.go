package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/klauspost/compress/gzip"
	"gopkg.in/yaml.v3"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Reader yields the entries of a trace stream once, front to back.
type Reader struct {
	closers []io.Closer
	dec     *yaml.Decoder
	header  Header
	now     int64
}

// Open opens a trace file. Compression is detected from the content.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace: %w", err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closers = append(r.closers, f)
	return r, nil
}

// NewReader reads the header from in and returns a Reader for the rest.
func NewReader(in io.Reader) (*Reader, error) {
	r := &Reader{}
	br := bufio.NewReader(in)
	if magic, err := br.Peek(2); err == nil && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("opening gzip trace: %w", err)
		}
		r.closers = append(r.closers, gz)
		r.dec = yaml.NewDecoder(gz)
	} else {
		r.dec = yaml.NewDecoder(br)
	}
	if err := r.dec.Decode(&r.header); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("trace has no header: %w", err)
		}
		return nil, fmt.Errorf("reading trace header: %w", err)
	}
	return r, nil
}

// Header returns the header read from the stream.
func (r *Reader) Header() Header { return r.header }

// Next returns the next entry, or io.EOF when the stream is exhausted.
func (r *Reader) Next() (Entry, error) {
	for {
		var rec record
		if err := r.dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return Entry{}, io.EOF
			}
			return Entry{}, fmt.Errorf("reading trace record: %w", err)
		}
		if rec.Time != nil {
			r.now = *rec.Time
		}
		if rec.Tag != "" {
			return Entry{Time: r.now, Tag: rec.Tag, Values: rec.Values}, nil
		}
	}
}

// All ranges over the remaining entries. Iteration stops after the first error.
func (r *Reader) All() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for {
			e, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(e, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the gzip stream and then the file opened by Open.
func (r *Reader) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
