package stream

import (
	"sync"

	"tradeapi-connector/src/models"
)

// DesiredState is the reduced intent of the application: which data types
// each account should be subscribed to, whatever happened to the stream.
type DesiredState struct {
	mu       sync.Mutex
	accounts map[string]models.DataType
	order    []string
}

func NewDesiredState() *DesiredState {
	return &DesiredState{accounts: make(map[string]models.DataType)}
}

// Apply folds one command into the table.
func (d *DesiredState) Apply(cmd models.MOrderTradeCommand) {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, known := d.accounts[cmd.AccountID]
	next := current
	if cmd.Action == models.ActionSubscribe {
		next |= cmd.DataType
	} else {
		next &^= cmd.DataType
	}

	if next == models.DataTypeNone {
		if known {
			delete(d.accounts, cmd.AccountID)
			for i, id := range d.order {
				if id == cmd.AccountID {
					d.order = append(d.order[:i:i], d.order[i+1:]...)
					break
				}
			}
		}
		return
	}
	if !known {
		d.order = append(d.order, cmd.AccountID)
	}
	d.accounts[cmd.AccountID] = next
}

// Get returns the wanted data types of account.
func (d *DesiredState) Get(accountID string) models.DataType {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.accounts[accountID]
}

// Replay returns the subscribe commands that rebuild the table on a fresh
// stream, one per account in first-subscribed order.
func (d *DesiredState) Replay() []models.MOrderTradeCommand {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]models.MOrderTradeCommand, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, models.MOrderTradeCommand{
			Action:    models.ActionSubscribe,
			DataType:  d.accounts[id],
			AccountID: id,
		})
	}
	return out
}

// Snapshot copies the table.
func (d *DesiredState) Snapshot() map[string]models.DataType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]models.DataType, len(d.accounts))
	for k, v := range d.accounts {
		out[k] = v
	}
	return out
}
