package rpc

import (
	"errors"
	"math/rand/v2"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/inference-sim/netsim/sim/deferred"
)

// Aspect intercepts a message on its way out of or into a node. It returns
// the message for the next stage, or nil to drop it. Aspects must keep the
// message's UID.
type Aspect func(method Method, msg Message) Message

// fold applies aspects left to right, stopping at the first drop.
func fold(aspects []Aspect, method Method, msg Message) Message {
	for _, a := range aspects {
		msg = a(method, msg)
		if msg == nil {
			return nil
		}
	}
	return msg
}

// FaultAspect turns a fraction p of successful responses into error responses
// with cause ErrInjectedFault. Draws come from rng, so the same seed injects
// the same faults. Requests pass through untouched.
func FaultAspect(rng *rand.Rand, p float64) Aspect {
	return func(method Method, msg Message) Message {
		resp, ok := msg.(*Response)
		if !ok || resp.IsError() {
			return msg
		}
		if rng.Float64() >= p {
			return msg
		}
		return &Response{UID: resp.UID, Failure: deferred.NewFailure(ErrInjectedFault, resp.Value)}
	}
}

// DropAspect drops every message for which keep returns false.
func DropAspect(keep func(Method, Message) bool) Aspect {
	return func(method Method, msg Message) Message {
		if !keep(method, msg) {
			return nil
		}
		return msg
	}
}

// Metrics counts RPC traffic by method, direction and message type.
type Metrics struct {
	messages *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg. Registering
// twice with the same registry reuses the existing collector.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netsim",
		Subsystem: "rpc",
		Name:      "messages_total",
		Help:      "Number of RPC messages seen by metrics aspects",
	}, []string{"method", "direction", "type"})

	if err := reg.Register(messages); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		messages = existing
	}
	return &Metrics{messages: messages}, nil
}

// Install adds a send and a receive aspect to n.
func (m *Metrics) Install(n *Node) {
	n.InsertSendAspect(m.Aspect("send"))
	n.InsertReceiveAspect(m.Aspect("receive"))
}

// Aspect returns a passthrough aspect counting messages under direction.
func (m *Metrics) Aspect(direction string) Aspect {
	return func(method Method, msg Message) Message {
		m.messages.WithLabelValues(string(method), direction, messageType(msg)).Inc()
		return msg
	}
}

// Counter exposes one series, mostly for tests and summaries.
func (m *Metrics) Counter(method Method, direction, typ string) prometheus.Counter {
	return m.messages.WithLabelValues(string(method), direction, typ)
}

func messageType(msg Message) string {
	switch v := msg.(type) {
	case *Request:
		return "request"
	case *Response:
		if v.IsError() {
			return "error"
		}
		return "response"
	default:
		return "other"
	}
}
