package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[Progress](b, 1)
	defer unsubscribe()

	evt := Progress{RunID: "r1", Step: "build", Status: StatusRunning, Label: "Build"}
	require.NoError(t, b.Publish(context.Background(), evt))

	select {
	case got := <-ch:
		require.Equal(t, evt, got)
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_TypedDelivery(t *testing.T) {
	b := NewBus()
	defer b.Close()

	progressCh, unsubP := Subscribe[Progress](b, 1)
	defer unsubP()
	finishedCh, unsubF := Subscribe[RunFinished](b, 1)
	defer unsubF()

	require.NoError(t, b.Publish(context.Background(), RunFinished{RunID: "r2", Success: true}))

	select {
	case got := <-finishedCh:
		require.True(t, got.Success)
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for RunFinished")
	}
	select {
	case got := <-progressCh:
		t.Fatalf("Progress subscriber should not receive RunFinished, got %+v", got)
	default:
	}
}

func TestBus_PublishBackpressureCancel(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsubscribe := Subscribe[Progress](b, 0) // unbuffered; no receiver => blocks
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := b.Publish(ctx, Progress{Step: "build"})
	require.Error(t, err)
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[Progress](b, 1)
	require.Equal(t, 1, SubscriberCount[Progress](b))

	unsubscribe()
	require.Equal(t, 0, SubscriberCount[Progress](b))

	_, open := <-ch
	require.False(t, open, "channel should be closed after unsubscribe")

	require.NoError(t, b.Publish(context.Background(), Progress{Step: "build"}))
}

func TestBus_CloseRejectsPublish(t *testing.T) {
	b := NewBus()
	ch, _ := Subscribe[Progress](b, 1)
	b.Close()

	_, open := <-ch
	require.False(t, open)
	require.Error(t, b.Publish(context.Background(), Progress{Step: "build"}))
}
