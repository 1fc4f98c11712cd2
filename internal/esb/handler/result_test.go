package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/riverbus/envelope/internal/esb/message"
)

func TestToMetadataUpdateRetryExhausted(t *testing.T) {
	eh := &message.ErrorHandling{MaxRetries: 1, Interval: 10 * time.Millisecond}
	now := time.Now()

	u := ToMetadataUpdate(Retry(0), 1, eh, now)
	require.Equal(t, message.StatusSuspended, u.Status)
	require.Equal(t, 1, u.RetryCount, "RetryCount is unchanged when retries are exhausted")
}

func TestToMetadataUpdateRetryGranted(t *testing.T) {
	eh := &message.ErrorHandling{MaxRetries: 2, Interval: 50 * time.Millisecond}
	now := time.Now()

	u := ToMetadataUpdate(Retry(0), 0, eh, now)
	require.Equal(t, message.StatusDeferred, u.Status)
	require.Equal(t, 1, u.RetryCount)
	require.WithinDuration(t, now.Add(50*time.Millisecond), *u.DelayedToUTC, time.Millisecond)
}

func TestToMetadataUpdateCompleted(t *testing.T) {
	u := ToMetadataUpdate(Completed(), 3, nil, time.Now())
	require.True(t, u.Processed)
	require.Equal(t, message.StatusCompleted, u.Status)
}

func TestEnrichDefaultsFillsMissingFields(t *testing.T) {
	r := Error("", nil)
	r.EnrichDefaults("msg-1")
	require.NotEmpty(t, r.ClientMessage)
	require.Equal(t, "msg-1", *r.IDCommandQuery)
}
