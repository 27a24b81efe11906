package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/couchcryptid/nwm-streamflow/internal/config"
	"github.com/couchcryptid/nwm-streamflow/internal/domain"
)

// Message encodings.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// messageWriter is the subset of *kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes assembled forecasts to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer messageWriter
	format string
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, format: cfg.PublishFormat, logger: logger}
}

// LoadBatch serializes the forecasts and writes them in a single
// WriteMessages call, stamping each message with the publish cycle's run id.
func (w *Writer) LoadBatch(ctx context.Context, runID string, forecasts []domain.Forecast) error {
	if len(forecasts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(forecasts))
	for i := range forecasts {
		msg, err := serializeToMessage(forecasts[i], w.format, runID)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d forecasts: %w", len(msgs), err)
	}
	w.logger.Debug("forecasts published", "count", len(msgs), "run_id", runID)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// MessageKey identifies a forecast on the topic: reach, variant and cycle.
// Republishing the same cycle for a reach reuses the key, so compacted topics
// keep only the latest.
func MessageKey(req domain.ForecastRequest) string {
	return strconv.FormatInt(req.ReachID, 10) + ":" + req.Variant.String() + ":" + req.Date + req.StartHourString()
}

// serializeToMessage encodes a Forecast into a Kafka message.
func serializeToMessage(f domain.Forecast, format, runID string) (kafkago.Message, error) {
	var (
		data        []byte
		err         error
		contentType string
	)
	switch format {
	case FormatMsgpack:
		data, err = msgpack.Marshal(f)
		contentType = "application/msgpack"
	case FormatJSON, "":
		data, err = json.Marshal(f)
		contentType = "application/json"
	default:
		return kafkago.Message{}, fmt.Errorf("unknown publish format %q", format)
	}
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize forecast for reach %d: %w", f.Request.ReachID, err)
	}

	return kafkago.Message{
		Key:   []byte(MessageKey(f.Request)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "variant", Value: []byte(f.Request.Variant.String())},
			{Key: "cycle", Value: []byte(f.Request.Cycle().Format(time.RFC3339))},
			{Key: "run_id", Value: []byte(runID)},
			{Key: "content_type", Value: []byte(contentType)},
		},
	}, nil
}
