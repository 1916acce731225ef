package rpc

import "github.com/inference-sim/netsim/sim/deferred"

// Deferred is the pending result of a call. On top of the plain chain it has
// a default callback and errback: if the call resolves on a branch nobody
// registered an explicit handler for, the matching default runs once after
// the chain drains.
type Deferred struct {
	*deferred.Deferred
	uid       uint64
	node      *Node
	defaultCB deferred.Callback
	defaultEB deferred.Errback
	failed    bool
	defaulted bool
}

func newDeferred(uid uint64, node *Node) *Deferred {
	d := &Deferred{uid: uid, node: node}
	d.Deferred = deferred.New(deferred.WithDrainHook(d.runDefault))
	return d
}

// UID returns the id of the request this Deferred waits for.
func (d *Deferred) UID() uint64 { return d.uid }

// DefaultCallback sets the handler used when the call succeeds and no
// explicit callback was ever added.
func (d *Deferred) DefaultCallback(cb deferred.Callback) *Deferred {
	d.defaultCB = cb
	return d
}

// DefaultErrback sets the handler used when the call fails and no explicit
// errback was ever added.
func (d *Deferred) DefaultErrback(eb deferred.Errback) *Deferred {
	d.defaultEB = eb
	return d
}

// NoReturn forgets the pending call. A later response for it is ignored.
func (d *Deferred) NoReturn() {
	d.node.removePending(d.uid)
}

func (d *Deferred) resolve(resp *Response) error {
	if resp.IsError() {
		d.failed = true
		return d.Errback(resp.Failure)
	}
	return d.Callback(resp.Value)
}

func (d *Deferred) runDefault(*deferred.Deferred) {
	if d.defaulted {
		return
	}
	r := d.Result()
	switch {
	case d.failed && !d.HasErrbacks() && d.defaultEB != nil:
		d.defaulted = true
		d.defaultEB(r.Failure())
	case !d.failed && !d.HasCallbacks() && d.defaultCB != nil:
		d.defaulted = true
		d.defaultCB(r.Value())
	}
}
