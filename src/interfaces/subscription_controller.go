package interfaces

import "tradeapi-connector/src/models"

// -----------------------------------------------------------------------------
// ISubscriptionController is the part of the connector the relay API drives.
// -----------------------------------------------------------------------------

type ISubscriptionController interface {
	Subscriptions() []models.MSubscriptionStatus
	Subscribe(sub models.MSubscription) (string, error)
	Unsubscribe(id string) error
	SubscribeOrderTrade(accountID string, types models.DataType) (string, error)
	UnsubscribeOrderTrade(accountID string, types models.DataType) error
}
