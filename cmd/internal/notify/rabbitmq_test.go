package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selfbooking/cmd/internal/booking"
	"selfbooking/cmd/internal/config"
)

type fakeChannel struct {
	declared  []string
	published []amqp.Publishing
	keys      []string
	failWith  error
}

func (f *fakeChannel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	if !durable {
		return amqp.Queue{}, errors.New("queue must be durable")
	}
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func newTestPublisher(ch *fakeChannel) (*Publisher, *int) {
	closed := 0
	p := NewPublisher(config.RabbitMQ{URL: "amqp://test", QueuePrefix: "selfbooking."})
	p.dial = func(string) (channel, func(), error) {
		return ch, func() { closed++ }, nil
	}
	return p, &closed
}

func TestPublisher_Notify(t *testing.T) {
	ch := &fakeChannel{}
	p, closed := newTestPublisher(ch)

	event := booking.Event{
		Type:       booking.EventBookingConfirmed,
		UserID:     7,
		BookingIDs: []int{11},
		Date:       "2025-03-04",
		Slot:       "10:00 AM",
		Remaining:  3,
		OccurredAt: 1740988800000,
	}
	require.NoError(t, p.Notify(context.Background(), event))

	assert.Equal(t, []string{"selfbooking.booking.confirmed"}, ch.declared)
	assert.Equal(t, []string{"selfbooking.booking.confirmed"}, ch.keys)
	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)

	var decoded booking.Event
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, event, decoded)
	assert.Equal(t, 1, *closed)
}

func TestPublisher_Errors(t *testing.T) {
	ch := &fakeChannel{failWith: errors.New("channel closed")}
	p, closed := newTestPublisher(ch)

	err := p.Notify(context.Background(), booking.Event{Type: booking.EventSeriesConfirmed})
	assert.ErrorContains(t, err, "selfbooking.series.confirmed")
	assert.Equal(t, 1, *closed)

	p.dial = func(string) (channel, func(), error) { return nil, nil, errors.New("refused") }
	err = p.Notify(context.Background(), booking.Event{Type: booking.EventSeriesConfirmed})
	assert.ErrorContains(t, err, "connect")
}
