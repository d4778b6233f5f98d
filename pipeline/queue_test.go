package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueueRejectsNonPositiveCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		q, err := NewQueue(capacity)
		assert.Nil(t, q)
		assert.ErrorIs(t, err, ErrInvalidOptions)
	}
}

func TestQueueFIFO(t *testing.T) {
	q, err := NewQueue(4)
	require.NoError(t, err)
	c, err := q.Consumer()
	require.NoError(t, err)

	for i := int64(0); i < 4; i++ {
		require.NoError(t, q.Push(context.Background(), NewFrameRecord([]byte{byte(i)}, i)))
	}
	assert.Equal(t, 4, q.Len())
	assert.Equal(t, 4, q.Cap())

	for i := int64(0); i < 4; i++ {
		frame, status := c.Receive(time.Second)
		require.Equal(t, ReceiveFrame, status)
		assert.Equal(t, i, frame.Timestamp())
		assert.Equal(t, []byte{byte(i)}, frame.Data())
	}
}

func TestQueueConsumerTakenOnce(t *testing.T) {
	q, err := NewQueue(1)
	require.NoError(t, err)

	_, err = q.Consumer()
	require.NoError(t, err)

	c, err := q.Consumer()
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrConsumerTaken)
}

func TestQueueReceiveTimeout(t *testing.T) {
	q, _ := NewQueue(1)
	c, _ := q.Consumer()

	start := time.Now()
	_, status := c.Receive(20 * time.Millisecond)
	assert.Equal(t, ReceiveTimeout, status)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestQueueCloseDrainsThenReportsClosed(t *testing.T) {
	q, _ := NewQueue(4)
	c, _ := q.Consumer()

	require.NoError(t, q.Push(context.Background(), NewFrameRecord(nil, 1)))
	require.NoError(t, q.Push(context.Background(), NewFrameRecord(nil, 2)))
	q.Close()
	assert.True(t, q.IsClosed())

	err := q.Push(context.Background(), NewFrameRecord(nil, 3))
	assert.ErrorIs(t, err, ErrChannelClosed)

	frame, status := c.Receive(time.Second)
	require.Equal(t, ReceiveFrame, status)
	assert.Equal(t, int64(1), frame.Timestamp())

	frame, status = c.Receive(time.Second)
	require.Equal(t, ReceiveFrame, status)
	assert.Equal(t, int64(2), frame.Timestamp())

	_, status = c.Receive(time.Second)
	assert.Equal(t, ReceiveClosed, status)
}

func TestQueueCloseIsIdempotent(t *testing.T) {
	q, _ := NewQueue(1)
	q.Close()
	q.Close()
	assert.True(t, q.IsClosed())
}

func TestQueuePushBlocksWhenFull(t *testing.T) {
	q, _ := NewQueue(1)
	c, _ := q.Consumer()
	require.NoError(t, q.Push(context.Background(), NewFrameRecord(nil, 1)))

	pushed := make(chan error, 1)
	go func() {
		pushed <- q.Push(context.Background(), NewFrameRecord(nil, 2))
	}()

	select {
	case <-pushed:
		t.Fatal("Push returned while the queue was full")
	case <-time.After(30 * time.Millisecond):
	}

	_, status := c.Receive(time.Second)
	require.Equal(t, ReceiveFrame, status)

	select {
	case err := <-pushed:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Push did not unblock after space was freed")
	}
}

func TestQueueCloseReleasesBlockedPush(t *testing.T) {
	q, _ := NewQueue(1)
	require.NoError(t, q.Push(context.Background(), NewFrameRecord(nil, 1)))

	pushed := make(chan error, 1)
	go func() {
		pushed <- q.Push(context.Background(), NewFrameRecord(nil, 2))
	}()
	time.Sleep(20 * time.Millisecond)

	q.Close()

	select {
	case err := <-pushed:
		assert.ErrorIs(t, err, ErrChannelClosed)
	case <-time.After(time.Second):
		t.Fatal("Close did not release a blocked Push")
	}
}

func TestQueuePushContextCancelled(t *testing.T) {
	q, _ := NewQueue(1)
	require.NoError(t, q.Push(context.Background(), NewFrameRecord(nil, 1)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.Push(ctx, NewFrameRecord(nil, 2))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 1, q.Len())
}

func TestQueueConcurrentPushAndClose(t *testing.T) {
	q, _ := NewQueue(8)
	c, _ := q.Consumer()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if err := q.Push(context.Background(), NewFrameRecord(nil, int64(id*100+j))); err == nil {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}
		}(i)
	}

	received := 0
	closed := make(chan struct{})
	go func() {
		time.Sleep(5 * time.Millisecond)
		q.Close()
		close(closed)
	}()

	for {
		_, status := c.Receive(50 * time.Millisecond)
		if status == ReceiveClosed {
			break
		}
		if status == ReceiveFrame {
			received++
		}
	}
	<-closed
	wg.Wait()

	assert.Equal(t, accepted, received, "every accepted frame must reach the consumer")
}

func TestReceiveStatusString(t *testing.T) {
	assert.Equal(t, "frame", ReceiveFrame.String())
	assert.Equal(t, "timeout", ReceiveTimeout.String())
	assert.Equal(t, "closed", ReceiveClosed.String())
	assert.Equal(t, "unknown", ReceiveStatus(9).String())
}
