package kafka

import (
	"context"
	"encoding/json"

	"github.com/mapdr-ai/platform/pkg/common/config"
	"github.com/mapdr-ai/platform/pkg/common/logger"
	"github.com/mapdr-ai/platform/pkg/common/models"
	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
}

type SessionHandler func(ctx context.Context, msg models.UploadSessionMessage) error

func NewConsumer(topic string, groupID string) *Consumer {
	cfg := config.Load()
	if groupID == "" {
		groupID = cfg.KafkaGroupID
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 64e6, // raw DICOM payloads ride in the message body
	})

	return &Consumer{reader: reader}
}

// ConsumeSessions fetches upload-session messages and hands them to the
// handler one at a time. A handler error does not block the partition: retry
// scheduling is the handler's job (it re-publishes with a bumped attempt
// count), so the message is committed either way. Only undecodable messages
// are dropped outright.
func (c *Consumer) ConsumeSessions(ctx context.Context, handler SessionHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			message, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Log.WithError(err).Error("Failed to fetch message")
				continue
			}

			var msg models.UploadSessionMessage
			if err := json.Unmarshal(message.Value, &msg); err != nil {
				logger.Log.WithError(err).Error("Failed to unmarshal session message")
				c.reader.CommitMessages(ctx, message)
				continue
			}

			if err := handler(ctx, msg); err != nil {
				logger.Log.WithError(err).WithFields(map[string]interface{}{
					"session_id": msg.SessionID,
					"attempt":    msg.Attempt,
				}).Error("Failed to process upload session")
			}

			if err := c.reader.CommitMessages(ctx, message); err != nil {
				logger.Log.WithError(err).Error("Failed to commit message")
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
