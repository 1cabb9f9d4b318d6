package notify

import (
	"context"
	"fmt"
	"time"

	"referral-earnings-go/internal/models"

	"github.com/segmentio/kafka-go"
)

// KafkaSink appends events to a topic keyed by beneficiary, so one
// beneficiary's events stay on one partition.
type KafkaSink struct {
	writer *kafka.Writer
	topic  string
}

func NewKafkaSink(cfg models.KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka sink requires at least one broker")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka sink requires a topic")
	}
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		topic: cfg.Topic,
	}, nil
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Deliver(ctx context.Context, event models.EarningsEvent) error {
	payload, err := EncodeEvent(event)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Topic: s.topic,
		Key:   []byte(event.BeneficiaryId),
		Value: payload,
		Time:  time.Now().UTC(),
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
