package rpc

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/netsim/sim"
	"github.com/inference-sim/netsim/sim/deferred"
	"github.com/inference-sim/netsim/sim/network"
)

// MethodFunc implements a served method. A returned error becomes an error
// response at the caller.
type MethodFunc func(args ...any) (any, error)

// Node is a network node that can serve and issue calls.
type Node struct {
	*network.Node
	methods     map[Method]MethodFunc
	pending     map[uint64]*Deferred
	sendAspects []Aspect
	recvAspects []Aspect
}

// NewNode creates an RPC node registered with topo.
func NewNode(topo *network.Topology) *Node {
	n := &Node{
		Node:    network.NewNode(topo),
		methods: make(map[Method]MethodFunc),
		pending: make(map[uint64]*Deferred),
	}
	n.On(KindRequest, n.handleRequest)
	n.On(KindResponse, n.handleResponse)
	return n
}

// Serve exposes fn under method, replacing any previous binding.
func (n *Node) Serve(method Method, fn MethodFunc) {
	n.methods[method] = fn
}

// Serves reports whether method is bound.
func (n *Node) Serves(method Method) bool {
	_, ok := n.methods[method]
	return ok
}

// InsertSendAspect appends a to the outgoing pipeline.
func (n *Node) InsertSendAspect(a Aspect) {
	n.sendAspects = append(n.sendAspects, a)
}

// InsertReceiveAspect appends a to the incoming pipeline.
func (n *Node) InsertReceiveAspect(a Aspect) {
	n.recvAspects = append(n.recvAspects, a)
}

// PendingCalls returns the number of calls still waiting for a response.
func (n *Node) PendingCalls() int { return len(n.pending) }

func (n *Node) removePending(uid uint64) {
	delete(n.pending, uid)
}

// Call asks dest to run method with args. Every failure, including an unknown
// destination, is reported through the returned Deferred's errback; Call
// itself never fails.
func (n *Node) Call(dest network.Addr, method Method, args ...any) *Deferred {
	req := &Request{
		UID:    nextUID(),
		Src:    n.Addr(),
		Dest:   dest,
		Method: method,
		Args:   args,
	}
	d := newDeferred(req.UID, n)
	n.pending[req.UID] = d

	msg := fold(n.sendAspects, method, req)
	if msg == nil {
		logrus.Debugf("[tick %07d] node %d: send aspect dropped %s request %d", n.Sim().Now(), n.Addr(), method, req.UID)
		return d
	}

	target := n.Topology().Node(dest)
	if target == nil {
		resp := &Response{UID: req.UID, Failure: deferred.NewFailure(fmt.Errorf("%w %d", ErrUnknownAddress, dest), req)}
		if err := n.Schedule(KindResponse, n.ID(), n.Topology().DrawLatency(), envelope{method: method, msg: resp}); err != nil {
			n.failLocally(d, err, req)
		}
		return d
	}
	if err := n.Schedule(KindRequest, target.ID(), n.Topology().DrawLatency(), envelope{method: method, msg: msg}); err != nil {
		n.failLocally(d, err, req)
	}
	return d
}

// failLocally answers the call with an error response delivered to n itself
// at the current time, so it resolves through handleResponse like any other
// reply and defaults set after Call returns still apply.
func (n *Node) failLocally(d *Deferred, err error, req *Request) {
	logrus.Warnf("[tick %07d] node %d: %s call %d failed before sending: %v", n.Sim().Now(), n.Addr(), req.Method, req.UID, err)
	resp := &Response{UID: req.UID, Failure: deferred.NewFailure(err, req)}
	if serr := n.Schedule(KindResponse, n.ID(), 0, envelope{method: req.Method, msg: resp}); serr != nil {
		n.removePending(req.UID)
		_ = d.resolve(resp)
	}
}

func (n *Node) handleRequest(ev *sim.Event) error {
	env, ok := ev.Payload.(envelope)
	if !ok {
		return fmt.Errorf("request event carries %T", ev.Payload)
	}
	req, ok := env.msg.(*Request)
	if !ok {
		return fmt.Errorf("request event carries message %T, want *Request", env.msg)
	}

	if !n.Alive() {
		resp := &Response{UID: req.UID, Failure: deferred.NewFailure(ErrNodeDown, req)}
		return n.reply(req.Src, env.method, resp)
	}

	msg := fold(n.recvAspects, env.method, req)
	if msg == nil {
		return nil
	}
	req, ok = msg.(*Request)
	if !ok {
		return fmt.Errorf("receive aspect turned request into %T", msg)
	}

	resp := n.invoke(req)
	out := fold(n.sendAspects, env.method, resp)
	if out == nil {
		return nil
	}
	return n.reply(req.Src, env.method, out)
}

func (n *Node) invoke(req *Request) *Response {
	fn, ok := n.methods[req.Method]
	if !ok {
		return &Response{UID: req.UID, Failure: deferred.NewFailure(&InvalidMethodError{Method: req.Method, Addr: n.Addr()}, req)}
	}
	v, err := fn(req.Args...)
	if err != nil {
		return &Response{UID: req.UID, Failure: deferred.NewFailure(err, req)}
	}
	return &Response{UID: req.UID, Value: v}
}

func (n *Node) reply(src network.Addr, method Method, msg Message) error {
	caller := n.Topology().Node(src)
	if caller == nil {
		logrus.Warnf("[tick %07d] node %d: dropping %s response %d, caller %d is gone", n.Sim().Now(), n.Addr(), method, msg.MessageUID(), src)
		return nil
	}
	return n.Schedule(KindResponse, caller.ID(), n.Topology().DrawLatency(), envelope{method: method, msg: msg})
}

func (n *Node) handleResponse(ev *sim.Event) error {
	env, ok := ev.Payload.(envelope)
	if !ok {
		return fmt.Errorf("response event carries %T", ev.Payload)
	}
	msg := fold(n.recvAspects, env.method, env.msg)
	if msg == nil {
		return nil
	}
	resp, ok := msg.(*Response)
	if !ok {
		return fmt.Errorf("receive aspect turned response into %T", msg)
	}

	d, ok := n.pending[resp.UID]
	if !ok {
		logrus.Debugf("[tick %07d] node %d: ignoring stale response %d", ev.Time, n.Addr(), resp.UID)
		return nil
	}
	n.removePending(resp.UID)
	if err := d.resolve(resp); err != nil {
		return fmt.Errorf("resolving %s call %d: %w", env.method, resp.UID, err)
	}
	return nil
}
