package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"gopkg.in/yaml.v3"
)

// Writer appends records to a trace stream.
type Writer struct {
	file    io.Closer
	gz      *gzip.Writer
	buf     *bufio.Writer
	enc     *yaml.Encoder
	last    int64
	started bool
	err     error
}

// Create opens path for writing, truncating it, and writes header.
func Create(path string, compress bool, header Header) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating trace file: %w", err)
	}
	w, err := NewWriter(f, compress, header)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.file = f
	return w, nil
}

// NewWriter writes header to out and returns a Writer for the records that
// follow. Close does not close out.
func NewWriter(out io.Writer, compress bool, header Header) (*Writer, error) {
	w := &Writer{}
	if compress {
		w.gz = gzip.NewWriter(out)
		out = w.gz
	}
	w.buf = bufio.NewWriter(out)
	w.enc = yaml.NewEncoder(w.buf)
	if err := w.enc.Encode(header); err != nil {
		return nil, fmt.Errorf("writing trace header: %w", err)
	}
	return w, nil
}

// Write appends a record logged at virtual time at. A time marker precedes it
// when at differs from the previous record's time. Times must not decrease.
func (w *Writer) Write(at int64, tag string, values []any) error {
	if w.err != nil {
		return w.err
	}
	if w.started && at < w.last {
		return fmt.Errorf("trace record %q at %d precedes previous time %d", tag, at, w.last)
	}
	if !w.started || at != w.last {
		t := at
		if err := w.enc.Encode(record{Time: &t}); err != nil {
			w.err = fmt.Errorf("writing time marker: %w", err)
			return w.err
		}
		w.started = true
		w.last = at
	}
	if err := w.enc.Encode(record{Tag: tag, Values: values}); err != nil {
		w.err = fmt.Errorf("writing trace record %q: %w", tag, err)
		return w.err
	}
	return nil
}

// Flush pushes buffered records to the underlying writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flushing trace: %w", err)
	}
	if w.gz != nil {
		if err := w.gz.Flush(); err != nil {
			return fmt.Errorf("flushing trace: %w", err)
		}
	}
	return nil
}

// Close flushes everything and closes the file opened by Create.
func (w *Writer) Close() error {
	err := w.enc.Close()
	if ferr := w.buf.Flush(); err == nil {
		err = ferr
	}
	if w.gz != nil {
		if gerr := w.gz.Close(); err == nil {
			err = gerr
		}
	}
	if w.file != nil {
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("closing trace: %w", err)
	}
	return w.err
}
