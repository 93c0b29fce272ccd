package stream

import (
	"context"
	"testing"
	"time"

	"tradeapi-connector/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueIsFIFO(t *testing.T) {
	q := NewCommandQueue[int]()
	for i := 1; i <= 3; i++ {
		q.Enqueue(i)
	}

	for want := 1; want <= 3; want++ {
		got, err := q.Dequeue(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueueRequeueGoesToHead(t *testing.T) {
	q := NewCommandQueue[string]()
	q.Enqueue("b")
	q.Requeue("a")

	first, _ := q.Dequeue(context.Background())
	second, _ := q.Dequeue(context.Background())
	assert.Equal(t, "a", first)
	assert.Equal(t, "b", second)
}

func TestQueueDequeueWaitsForItem(t *testing.T) {
	q := NewCommandQueue[int]()
	got := make(chan int, 1)
	go func() {
		v, err := q.Dequeue(context.Background())
		if err == nil {
			got <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Enqueue(7)

	select {
	case v := <-got:
		assert.Equal(t, 7, v)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not wake up")
	}
}

func TestQueueDequeueHonoursContext(t *testing.T) {
	q := NewCommandQueue[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueWaitLeavesItemQueued(t *testing.T) {
	q := NewCommandQueue[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Enqueue(7)
	}()
	require.NoError(t, q.Wait(ctx))
	assert.Equal(t, 1, q.Len())

	v, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	cancel()
	assert.Error(t, q.Wait(ctx))
}

func TestDesiredStateReducesCommands(t *testing.T) {
	d := NewDesiredState()
	d.Apply(models.MOrderTradeCommand{Action: models.ActionSubscribe, DataType: models.DataTypeOrders, AccountID: "A"})
	d.Apply(models.MOrderTradeCommand{Action: models.ActionSubscribe, DataType: models.DataTypeAll, AccountID: "B"})
	d.Apply(models.MOrderTradeCommand{Action: models.ActionSubscribe, DataType: models.DataTypeTrades, AccountID: "A"})
	d.Apply(models.MOrderTradeCommand{Action: models.ActionUnsubscribe, DataType: models.DataTypeOrders, AccountID: "B"})

	assert.Equal(t, []models.MOrderTradeCommand{
		{Action: models.ActionSubscribe, DataType: models.DataTypeAll, AccountID: "A"},
		{Action: models.ActionSubscribe, DataType: models.DataTypeTrades, AccountID: "B"},
	}, d.Replay())

	d.Apply(models.MOrderTradeCommand{Action: models.ActionUnsubscribe, DataType: models.DataTypeAll, AccountID: "A"})
	assert.Equal(t, models.DataTypeNone, d.Get("A"))
	assert.Len(t, d.Replay(), 1)

	// unsubscribing an unknown account leaves no trace
	d.Apply(models.MOrderTradeCommand{Action: models.ActionUnsubscribe, DataType: models.DataTypeAll, AccountID: "C"})
	assert.Len(t, d.Snapshot(), 1)
}
