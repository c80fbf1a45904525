package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-chainsync/internal/config"
	"ms-chainsync/internal/models"
)

// Producer streams projection changes to the rest of the platform. One
// writer per topic, all pointed at the same brokers.
type Producer struct {
	eventWriter  *kafka.Writer
	ticketWriter *kafka.Writer
	resaleWriter *kafka.Writer
}

func NewProducer(brokers []string, topics config.TopicConfig) *Producer {
	newWriter := func(topic string) *kafka.Writer {
		return kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   topic,
		})
	}
	return &Producer{
		eventWriter:  newWriter(topics.EventSynced),
		ticketWriter: newWriter(topics.TicketSynced),
		resaleWriter: newWriter(topics.TicketResold),
	}
}

// PublishEventSynced streams an event projection change to Kafka
func (p *Producer) PublishEventSynced(event *models.Event) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	fmt.Printf("Publishing to Kafka [event_synced]: %s\n", event.LedgerEventID)

	return p.eventWriter.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(event.LedgerEventID),
			Value: msgBytes,
		},
	)
}

// PublishTicketSynced streams a ticket projection change to Kafka
func (p *Producer) PublishTicketSynced(ticket *models.Ticket) error {
	msgBytes, err := json.Marshal(ticket)
	if err != nil {
		return err
	}

	fmt.Printf("Publishing to Kafka [ticket_synced]: %s\n", ticket.LedgerTicketID)

	return p.ticketWriter.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(ticket.LedgerTicketID),
			Value: msgBytes,
		},
	)
}

// PublishTicketResold streams a marketplace sale to Kafka
func (p *Producer) PublishTicketResold(ticket *models.Ticket, listing *models.Listing) error {
	payload := struct {
		Ticket  *models.Ticket  `json:"ticket"`
		Listing *models.Listing `json:"listing"`
	}{Ticket: ticket, Listing: listing}

	msgBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	fmt.Printf("Publishing to Kafka [ticket_resold]: %s\n", ticket.LedgerTicketID)

	return p.resaleWriter.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(ticket.LedgerTicketID),
			Value: msgBytes,
		},
	)
}

// Close flushes and closes every writer.
func (p *Producer) Close() error {
	var firstErr error
	for _, w := range []*kafka.Writer{p.eventWriter, p.ticketWriter, p.resaleWriter} {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
