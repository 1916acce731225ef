package scenario

import (
	"fmt"

	"github.com/inference-sim/netsim/sim"
	"github.com/inference-sim/netsim/sim/trace"
)

// KindItem carries a product name from the producer to the consumer.
const KindItem sim.Kind = "item"

var products = []string{"Prosciutto", "Salami", "Formaggio", "Pomodori"}

// ProducerConsumer ships items spaced apart in time to a single consumer.
type ProducerConsumer struct {
	sim      *sim.Simulator
	producer *sim.Entity
	consumer *Consumer
}

// Consumer counts what it receives.
type Consumer struct {
	*sim.Entity
	received []string
	log      *trace.DataSet
}

// Received returns the product names in arrival order.
func (c *Consumer) Received() []string { return c.received }

func (c *Consumer) handleItem(ev *sim.Event) error {
	name, ok := ev.Payload.(string)
	if !ok {
		return fmt.Errorf("item event carries %T, want string", ev.Payload)
	}
	c.received = append(c.received, name)
	c.log.Log(name, len(c.received))
	return nil
}

// NewProducerConsumer schedules items events to the consumer at 0, spacing,
// 2*spacing and so on. Product names are drawn from the workload stream.
func NewProducerConsumer(env Env, items int, spacing int64) (*ProducerConsumer, error) {
	s := env.Sim
	consumer := &Consumer{Entity: sim.NewEntity(s), log: env.registry().DataSet("producer")}
	consumer.On(KindItem, consumer.handleItem)
	producer := sim.NewEntity(s)

	rng := s.RNG().ForSubsystem(sim.SubsystemWorkload)
	for i := 0; i < items; i++ {
		name := products[rng.IntN(len(products))]
		if err := producer.Schedule(KindItem, consumer.ID(), int64(i)*spacing, name); err != nil {
			return nil, fmt.Errorf("scheduling item %d: %w", i, err)
		}
	}
	return &ProducerConsumer{sim: s, producer: producer, consumer: consumer}, nil
}

// Name implements Scenario.
func (p *ProducerConsumer) Name() string { return NameProducerConsumer }

// Consumer returns the receiving entity.
func (p *ProducerConsumer) Consumer() *Consumer { return p.consumer }

// Summarize reports how many items arrived.
func (p *ProducerConsumer) Summarize() *Summary {
	sum := newSummary(p.Name(), p.sim)
	sum.Counters["received"] = uint64(len(p.consumer.received))
	return sum
}
