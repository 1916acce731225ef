package trace

import (
	"errors"
	"sort"
)

// Clock supplies the virtual time stamped onto logged records.
// *sim.Simulator satisfies it.
type Clock interface {
	Now() int64
}

// Handler receives the values logged to a data set at virtual time at.
type Handler func(at int64, values []any)

// Registry owns the named data sets of one run and the writer they share.
// It is not safe for concurrent use.
type Registry struct {
	clock    Clock
	writer   *Writer
	sets     map[string]*DataSet
	handlers map[string][]Handler
}

// NewRegistry creates a registry stamping records with clock. With a nil
// writer, records reach only registered handlers.
func NewRegistry(clock Clock, w *Writer) *Registry {
	return &Registry{
		clock:    clock,
		writer:   w,
		sets:     make(map[string]*DataSet),
		handlers: make(map[string][]Handler),
	}
}

// DataSet returns the data set called name, creating it on first use.
func (r *Registry) DataSet(name string) *DataSet {
	if ds, ok := r.sets[name]; ok {
		return ds
	}
	ds := &DataSet{name: name, reg: r}
	r.sets[name] = ds
	return ds
}

// Names returns the data set names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sets))
	for n := range r.sets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AddHandler routes records of data set name to h. While a data set has
// handlers, its records are not written to the file.
func (r *Registry) AddHandler(name string, h Handler) {
	r.handlers[name] = append(r.handlers[name], h)
}

// Flush persists buffered records. It implements sim.Flusher.
func (r *Registry) Flush() error {
	if r.writer == nil {
		return nil
	}
	return r.writer.Flush()
}

// Close flushes and closes the writer, if any.
func (r *Registry) Close() error {
	if r.writer == nil {
		return nil
	}
	return r.writer.Close()
}

// DataSet is a named stream of records within a Registry.
type DataSet struct {
	name  string
	reg   *Registry
	count int
	err   error
}

// Name returns the data set's name.
func (d *DataSet) Name() string { return d.name }

// Count returns how many records were logged.
func (d *DataSet) Count() int { return d.count }

// Err returns the first write error seen by Log.
func (d *DataSet) Err() error { return d.err }

// Log records values at the current virtual time.
func (d *DataSet) Log(values ...any) {
	d.count++
	at := d.reg.clock.Now()
	if hs := d.reg.handlers[d.name]; len(hs) > 0 {
		for _, h := range hs {
			h(at, values)
		}
		return
	}
	if d.reg.writer == nil {
		return
	}
	if err := d.reg.writer.Write(at, d.name, values); err != nil && d.err == nil {
		d.err = err
	}
}

// Errs joins the write errors of every data set.
func (r *Registry) Errs() error {
	var errs []error
	for _, n := range r.Names() {
		errs = append(errs, r.sets[n].err)
	}
	return errors.Join(errs...)
}
