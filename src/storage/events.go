package storage

import (
	"fmt"

	"tradeapi-connector/src/config"
	"tradeapi-connector/src/interfaces"
	"tradeapi-connector/src/logger"
	"tradeapi-connector/src/models"
	"tradeapi-connector/src/tradeapi"

	"google.golang.org/protobuf/encoding/protojson"
)

// eventRow is one stream event as stored in the events table.
type eventRow struct {
	Kind           string
	SubscriptionID string
	Symbol         string
	MessageType    string
	ReceivedAt     int64 // unix milliseconds
	Payload        string
}

var payloadOptions = protojson.MarshalOptions{UseProtoNames: true}

func toRow(ev models.MStreamEvent) (eventRow, error) {
	row := eventRow{
		Kind:           string(ev.Kind),
		SubscriptionID: ev.SubscriptionID,
		ReceivedAt:     ev.ReceivedAt.UnixMilli(),
		Payload:        "{}",
	}
	if ev.Payload == nil {
		return row, nil
	}

	row.MessageType = string(ev.Payload.ProtoReflect().Descriptor().FullName())
	row.Symbol = tradeapi.String(ev.Payload, "symbol")

	data, err := payloadOptions.Marshal(ev.Payload)
	if err != nil {
		return row, fmt.Errorf("failed to encode %s payload: %w", row.MessageType, err)
	}
	row.Payload = string(data)
	return row, nil
}

// -----------------------------------------------------------------------------

// NewRecorder returns the recorder selected by storage.db_type, or nil when
// recording is disabled.
func NewRecorder(cfg *config.Config, log *logger.Logger) (interfaces.IEventRecorder, error) {
	switch cfg.Storage.DBType {
	case "sqlite":
		return NewAsyncSQLiteDB(cfg.MConfig, log)
	case "postgres":
		return NewPostgresDB(cfg.MConfig, log)
	case "", "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported database type: %s", cfg.Storage.DBType)
}
