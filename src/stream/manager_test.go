package stream

import (
	"context"
	"testing"

	"tradeapi-connector/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func idleRunner(id string) *Runner {
	return NewRunner(RunnerConfig{
		Subscription: models.MSubscription{ID: id, Kind: models.KindQuote},
		Open: func(ctx context.Context) (Receiver, error) {
			return &scriptedRecv{ctx: ctx}, nil
		},
		Dispatch: func(proto.Message) int { return 0 },
	})
}

func TestManagerRegistry(t *testing.T) {
	m := NewManager(context.Background(), testLogger(t))

	require.NoError(t, m.Add(idleRunner("B")))
	require.NoError(t, m.Add(idleRunner("A")))
	assert.Error(t, m.Add(idleRunner("A")))

	statuses := m.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "A", statuses[0].Subscription.ID)

	_, ok := m.Get("B")
	assert.True(t, ok)

	require.NoError(t, m.Remove("B"))
	assert.Error(t, m.Remove("B"))

	a, ok := m.Get("A")
	require.True(t, ok)

	m.Stop()
	assert.Equal(t, models.StateTerminated, a.Status().State)
	assert.Error(t, m.Add(idleRunner("C")))
}
