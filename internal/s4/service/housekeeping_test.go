package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/s4hq/s4/internal/s4/domain"
	"github.com/s4hq/s4/internal/s4/store"
	"github.com/stretchr/testify/require"
)

func TestHousekeepingCleanup(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hk := NewHousekeepingService(st, logger, time.Hour, DefaultSessionTTL, 24*time.Hour)

	now := time.Now().UTC()

	// One expired and one live login process.
	require.NoError(t, st.LoginProcesses().Create(ctx, domain.LoginProcess{
		Username: "stale@example.com", WindowID: "w1",
		CreatedAt: now.Add(-DefaultSessionTTL - time.Minute),
	}))
	require.NoError(t, st.LoginProcesses().Create(ctx, domain.LoginProcess{
		Username: "fresh@example.com", WindowID: "w1", CreatedAt: now,
	}))

	// One stale unverified code, one stale-but-verified code.
	require.NoError(t, st.VerificationCodes().Upsert(ctx, "stale@example.com", "111111", now.Add(-48*time.Hour)))
	require.NoError(t, st.VerificationCodes().Upsert(ctx, "kept@example.com", "222222", now.Add(-48*time.Hour)))
	require.NoError(t, st.VerificationCodes().MarkVerified(ctx, "kept@example.com"))

	hk.cleanup()

	_, err := st.LoginProcesses().Get(ctx, "stale@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.LoginProcesses().Get(ctx, "fresh@example.com")
	require.NoError(t, err)

	_, err = st.VerificationCodes().Get(ctx, "stale@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.VerificationCodes().Get(ctx, "kept@example.com")
	require.NoError(t, err)
}

func TestHousekeepingStartStop(t *testing.T) {
	st := newTestStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hk := NewHousekeepingService(st, logger, time.Hour, 0, 0)
	hk.Start()
	hk.Stop()
}
