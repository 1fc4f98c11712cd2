package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewMessageDefaults(t *testing.T) {
	m := NewMessage("svc-a", []byte("hi"))
	require.Equal(t, StatusCreated, m.MessageStatus)
	require.True(t, m.ContainsContent)
	require.True(t, m.HasSelfContent)
	require.NotEqual(t, m.MessageID.String(), "")
}

func TestIsExpiredAndIsDelayed(t *testing.T) {
	now := time.Now()
	m := NewMessage("svc-a", nil)

	require.False(t, m.IsExpired(now))
	require.False(t, m.IsDelayed(now))

	past := now.Add(-time.Minute)
	m.TimeToLiveUTC = &past
	require.True(t, m.IsExpired(now))

	future := now.Add(time.Minute)
	m.DelayedToUTC = &future
	require.True(t, m.IsDelayed(now))
}

func TestEffectiveErrorHandlingPrefersMessageOverride(t *testing.T) {
	queueDefault := &ErrorHandling{MaxRetries: 3}
	m := NewMessage("svc-a", nil)

	require.Same(t, queueDefault, m.EffectiveErrorHandling(queueDefault))

	override := &ErrorHandling{MaxRetries: 1}
	m.ErrorHandling = override
	require.Same(t, override, m.EffectiveErrorHandling(queueDefault))
}

func TestCanRetry(t *testing.T) {
	eh := ErrorHandling{MaxRetries: 2}
	require.True(t, eh.CanRetry(0))
	require.True(t, eh.CanRetry(1))
	require.False(t, eh.CanRetry(2))
}

func TestMessageMetadataUpdateApplyPreservesInvariants(t *testing.T) {
	m := NewMessage("svc-a", nil)
	m.RetryCount = 2

	// invariant 6: RetryCount never decreases.
	Suspended(1).Apply(m)
	require.Equal(t, 2, m.RetryCount)

	// invariant 5: Processed true iff Status == Completed.
	Completed().Apply(m)
	require.Equal(t, StatusCompleted, m.MessageStatus)

	delayTo := time.Now().Add(time.Hour)
	Retried(3, delayTo).Apply(m)
	require.Equal(t, StatusDeferred, m.MessageStatus)
	require.Equal(t, 3, m.RetryCount)
	require.Equal(t, delayTo, *m.DelayedToUTC)
}
