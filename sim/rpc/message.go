// Package rpc layers request/response calls on top of sim/network.
//
// A call allocates a process-wide unique id, parks a Deferred under that id
// on the calling node and schedules a request event at the destination after a
// latency draw. The destination answers with a response event that travels
// back the same way. A destination that is down when the request lands still
// answers, with an error response carrying the request, so pending
// calls always resolve.
package rpc

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/inference-sim/netsim/sim"
	"github.com/inference-sim/netsim/sim/deferred"
	"github.com/inference-sim/netsim/sim/network"
)

// Event kinds owned by the RPC layer.
const (
	KindRequest  sim.Kind = "rpc.request"
	KindResponse sim.Kind = "rpc.response"
)

var (
	// ErrNodeDown is the cause of the failure returned by a dead destination.
	// The failure's Value is the undelivered *Request.
	ErrNodeDown = errors.New("destination node is down")
	// ErrInvalidMethod marks a call to a method the destination does not serve.
	ErrInvalidMethod = errors.New("invalid rpc method")
	// ErrUnknownAddress marks a call to an address with no registered node.
	ErrUnknownAddress = errors.New("unknown rpc address")
	// ErrInjectedFault is the cause used by FaultAspect.
	ErrInjectedFault = errors.New("injected rpc fault")
)

// InvalidMethodError names the method and the node that rejected it.
type InvalidMethodError struct {
	Method Method
	Addr   network.Addr
}

func (e *InvalidMethodError) Error() string {
	return fmt.Sprintf("node %d does not serve %q", e.Addr, e.Method)
}

func (e *InvalidMethodError) Unwrap() error { return ErrInvalidMethod }

// Method names an operation served by a Node.
type Method string

// rpcCounter allocates request ids. It is process-wide so ids stay unique
// across simulator resets and across independent simulators.
var rpcCounter atomic.Uint64

func nextUID() uint64 {
	return rpcCounter.Add(1)
}

// Message is what aspects see: a *Request or a *Response.
type Message interface {
	MessageUID() uint64
}

// Request is sent from Src to Dest asking it to run Method with Args.
type Request struct {
	UID    uint64
	Src    network.Addr
	Dest   network.Addr
	Method Method
	Args   []any
}

func (r *Request) MessageUID() uint64 { return r.UID }

// Response answers the request with the same UID. Exactly one of Value and
// Failure is meaningful: a non-nil Failure makes it an error response.
type Response struct {
	UID     uint64
	Value   any
	Failure *deferred.Failure
}

func (r *Response) MessageUID() uint64 { return r.UID }

// IsError reports whether r is an error response.
func (r *Response) IsError() bool { return r.Failure != nil }

// Result converts the response into a deferred.Result.
func (r *Response) Result() deferred.Result {
	if r.Failure != nil {
		return deferred.Fail(r.Failure)
	}
	return deferred.Success(r.Value)
}

// envelope is the payload of KindRequest and KindResponse events.
type envelope struct {
	method Method
	msg    Message
}
