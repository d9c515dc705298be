package queue

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastQueue() *InMemoryQueue {
	q := NewInMemoryQueue(nil)
	q.Backoff = func(int) time.Duration { return time.Millisecond }
	return q
}

func TestInMemoryRetriesUntilSuccess(t *testing.T) {
	q := fastQueue()
	var calls int32
	require.NoError(t, q.Subscribe("jobs", func(payload any) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("db down")
		}
		return nil
	}))

	require.NoError(t, q.Publish("jobs", "m1"))
	q.Wait()
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestInMemoryGivesUpAfterMaxRetries(t *testing.T) {
	q := fastQueue()
	var calls int32
	require.NoError(t, q.Subscribe("jobs", func(payload any) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("still down")
	}))

	require.NoError(t, q.Publish("jobs", "m1"))
	q.Wait()
	assert.Equal(t, int32(DefaultMaxRetries+1), atomic.LoadInt32(&calls))
}

func TestInMemoryPermanentErrorIsNotRetried(t *testing.T) {
	q := fastQueue()
	var calls int32
	require.NoError(t, q.Subscribe("jobs", func(payload any) error {
		atomic.AddInt32(&calls, 1)
		return Permanent(errors.New("bad payload"))
	}))

	require.NoError(t, q.Publish("jobs", 42))
	q.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPublishWithoutSubscribers(t *testing.T) {
	assert.Error(t, NewInMemoryQueue(nil).Publish("nobody", 1))
}

func TestRetryCountHeader(t *testing.T) {
	assert.Equal(t, int32(0), RetryCount(amqp.Table{}))
	assert.Equal(t, int32(2), RetryCount(amqp.Table{retryHeader: int32(2)}))
	assert.Equal(t, int32(3), RetryCount(amqp.Table{retryHeader: int64(3)}))
}
