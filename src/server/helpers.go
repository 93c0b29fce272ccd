package server

import (
	"encoding/json"

	"tradeapi-connector/src/models"

	"google.golang.org/protobuf/encoding/protojson"
)

var payloadOptions = protojson.MarshalOptions{UseProtoNames: true}

// -----------------------------------------------------------------------------

// toRelayMessage encodes the broker payload as JSON so that WebSocket
// clients need no schema.
func toRelayMessage(event models.MStreamEvent) (models.MRelayMessage, error) {
	message := models.MRelayMessage{
		Type:           "UPDATE",
		Kind:           event.Kind,
		SubscriptionID: event.SubscriptionID,
		ReceivedAt:     event.ReceivedAt.UnixMilli(),
		Payload:        json.RawMessage("{}"),
	}
	if event.Payload == nil {
		return message, nil
	}

	data, err := payloadOptions.Marshal(event.Payload)
	if err != nil {
		return message, err
	}
	message.Payload = data
	return message, nil
}
