package rpc

import (
	"github.com/inference-sim/netsim/sim/deferred"
	"github.com/inference-sim/netsim/sim/network"
)

// Peer is a handle on a remote node as seen from a local one. Defaults set on
// the Peer are copied onto every Deferred it returns.
//
// A Peer stores only the remote address; the node is looked up in the
// topology on every call.
type Peer struct {
	local     *Node
	remote    network.Addr
	defaultCB deferred.Callback
	defaultEB deferred.Errback
}

// NewPeer binds local to the node at remote.
func NewPeer(local *Node, remote network.Addr) *Peer {
	return &Peer{local: local, remote: remote}
}

// Addr returns the remote address.
func (p *Peer) Addr() network.Addr { return p.remote }

// Reachable reports whether a node is currently registered at the remote address.
func (p *Peer) Reachable() bool {
	return p.local.Topology().Node(p.remote) != nil
}

// DefaultCallback sets the default callback copied onto every later call.
func (p *Peer) DefaultCallback(cb deferred.Callback) *Peer {
	p.defaultCB = cb
	return p
}

// DefaultErrback sets the default errback copied onto every later call.
func (p *Peer) DefaultErrback(eb deferred.Errback) *Peer {
	p.defaultEB = eb
	return p
}

// Call calls method on the remote node.
func (p *Peer) Call(method Method, args ...any) *Deferred {
	d := p.local.Call(p.remote, method, args...)
	if p.defaultCB != nil {
		d.DefaultCallback(p.defaultCB)
	}
	if p.defaultEB != nil {
		d.DefaultErrback(p.defaultEB)
	}
	return d
}
