package vault

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/llmshield/gateway/internal/entity"
)

func TestNewSessionIDFormat(t *testing.T) {
	v := New()
	id, err := v.NewSession(time.Minute)
	require.NoError(t, err)
	require.Regexp(t, `^sess_[0-9a-f]{12}$`, id)
}

func TestStoreAndGetRoundTrip(t *testing.T) {
	v := New()
	id, err := v.NewSession(time.Minute)
	require.NoError(t, err)

	mapping := EntityMapping{Placeholder: "[EMAIL_1]", Type: entity.TypeEmail, Original: "jane@example.com"}
	require.NoError(t, v.Store(id, mapping))

	got, ok := v.Get(id, "[EMAIL_1]")
	require.True(t, ok)
	require.Equal(t, mapping, got)
}

func TestGetMissesOnUnknownSession(t *testing.T) {
	v := New()
	_, ok := v.Get("sess_000000000000", "[EMAIL_1]")
	require.False(t, ok)
}

func TestGetMissesOnExpiredSession(t *testing.T) {
	v := New()
	id, err := v.NewSession(20 * time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, v.Store(id, EntityMapping{Placeholder: "[EMAIL_1]"}))

	time.Sleep(40 * time.Millisecond) // let the session expire
	_, ok := v.Get(id, "[EMAIL_1]")
	require.False(t, ok)
}

func TestCleanupExpiredRemovesOnlyExpired(t *testing.T) {
	v := New()
	live, err := v.NewSession(time.Hour)
	require.NoError(t, err)
	expired, err := v.NewSession(-time.Second)
	require.NoError(t, err)

	removed := v.CleanupExpired()
	require.Equal(t, 1, removed)

	_, liveOK := v.Get(live, "anything")
	_, expiredOK := v.Get(expired, "anything")
	require.False(t, liveOK) // miss is expected (no mapping stored), not an error
	require.False(t, expiredOK)
}

func TestDeleteSessionIsIdempotent(t *testing.T) {
	v := New()
	id, err := v.NewSession(time.Minute)
	require.NoError(t, err)

	v.DeleteSession(id)
	v.DeleteSession(id) // must not panic on double delete
	_, ok := v.Get(id, "x")
	require.False(t, ok)
}

func TestStoreFailsForUnknownSession(t *testing.T) {
	v := New()
	err := v.Store("sess_deadbeefcafe", EntityMapping{Placeholder: "[X_1]"})
	require.Error(t, err)
}
