package broker

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type declaredExchange struct {
	name    string
	kind    string
	durable bool
}

type declaredQueue struct {
	name    string
	durable bool
}

type declaredBinding struct {
	queue    string
	key      string
	exchange string
}

type fakeTopologyDeclarer struct {
	exchanges []declaredExchange
	queues    []declaredQueue
	bindings  []declaredBinding
	failOn    string
}

func (f *fakeTopologyDeclarer) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	if f.failOn == name {
		return amqp.ErrClosed
	}
	f.exchanges = append(f.exchanges, declaredExchange{name: name, kind: kind, durable: durable})
	return nil
}

func (f *fakeTopologyDeclarer) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	if f.failOn == name {
		return amqp.Queue{}, amqp.ErrClosed
	}
	f.queues = append(f.queues, declaredQueue{name: name, durable: durable})
	return amqp.Queue{Name: name}, nil
}

func (f *fakeTopologyDeclarer) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	f.bindings = append(f.bindings, declaredBinding{queue: name, key: key, exchange: exchange})
	return nil
}

func TestDeclareTopology(t *testing.T) {
	fake := &fakeTopologyDeclarer{}
	require.NoError(t, declareTopology(fake))

	assert.Equal(t, []declaredExchange{
		{name: "patient.events", kind: "topic", durable: true},
		{name: "analytics.events", kind: "topic", durable: true},
	}, fake.exchanges)

	assert.Equal(t, []declaredQueue{
		{name: "patient-processing", durable: true},
		{name: "analytics-processing", durable: true},
	}, fake.queues)

	assert.Equal(t, []declaredBinding{
		{queue: "patient-processing", key: "patient.*", exchange: "patient.events"},
		{queue: "analytics-processing", key: "analytics.*", exchange: "analytics.events"},
	}, fake.bindings)
}

func TestDeclareTopologyRepeatable(t *testing.T) {
	fake := &fakeTopologyDeclarer{}
	require.NoError(t, declareTopology(fake))
	require.NoError(t, declareTopology(fake))

	// Declarations ran twice with identical parameters, which a real broker
	// treats as a no-op.
	assert.Len(t, fake.exchanges, 4)
	assert.Len(t, fake.queues, 4)
}

func TestDeclareTopologyExchangeFailure(t *testing.T) {
	fake := &fakeTopologyDeclarer{failOn: "analytics.events"}
	err := declareTopology(fake)
	require.Error(t, err)
	assert.Empty(t, fake.queues, "queue declaration must not proceed past a failed exchange")
}

func TestDeclareTopologyQueueFailure(t *testing.T) {
	fake := &fakeTopologyDeclarer{failOn: "patient-processing"}
	err := declareTopology(fake)
	require.Error(t, err)
	assert.Empty(t, fake.bindings)
}
