package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bogdan-lmk/discord-parer/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDatabase(t *testing.T) *Database {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testMessage(messageID string) *models.Message {
	return &models.Message{
		AccountID:   "acc-1",
		ServerID:    "srv-1",
		ServerName:  "Test Server",
		ChannelID:   "chan-1",
		ChannelName: "announcements",
		MessageID:   messageID,
		Author:      "alice",
		Content:     "big news",
		Timestamp:   time.Now().UTC(),
	}
}

func TestTryClaim(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	claimed, err := db.TryClaim(ctx, testMessage("msg-1"))
	require.NoError(t, err)
	assert.True(t, claimed)

	// Second claim on the same key must lose.
	claimed, err = db.TryClaim(ctx, testMessage("msg-1"))
	require.NoError(t, err)
	assert.False(t, claimed)

	// Different message on the same channel is independent.
	claimed, err = db.TryClaim(ctx, testMessage("msg-2"))
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestTryClaimConcurrent(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := db.TryClaim(ctx, testMessage("contested"))
			if err == nil && claimed {
				results <- true
			}
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for range results {
		winners++
	}
	assert.Equal(t, 1, winners, "exactly one claimer may win")
}

func TestCommitForward(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	msg := testMessage("msg-1")
	claimed, err := db.TryClaim(ctx, msg)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, db.CommitForward(ctx, msg.AccountID, msg.ChannelID, msg.MessageID))

	// Committing twice fails: the row is no longer inflight.
	err = db.CommitForward(ctx, msg.AccountID, msg.ChannelID, msg.MessageID)
	assert.Error(t, err)

	// A committed key can never be claimed again.
	claimed, err = db.TryClaim(ctx, msg)
	require.NoError(t, err)
	assert.False(t, claimed)

	count, err := db.CountForwarded(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCommitWithoutClaim(t *testing.T) {
	db := setupTestDatabase(t)
	err := db.CommitForward(context.Background(), "acc-1", "chan-1", "never-claimed")
	assert.Error(t, err)
}

func TestReleaseClaim(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	msg := testMessage("msg-1")
	claimed, err := db.TryClaim(ctx, msg)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, db.ReleaseClaim(ctx, msg.AccountID, msg.ChannelID, msg.MessageID))

	// Released keys become claimable again.
	claimed, err = db.TryClaim(ctx, msg)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestForwardStatus(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	status, err := db.ForwardStatus(ctx, "acc-1", "chan-1", "msg-1")
	require.NoError(t, err)
	assert.Empty(t, status)

	msg := testMessage("msg-1")
	claimed, err := db.TryClaim(ctx, msg)
	require.NoError(t, err)
	require.True(t, claimed)

	status, err = db.ForwardStatus(ctx, msg.AccountID, msg.ChannelID, msg.MessageID)
	require.NoError(t, err)
	assert.Equal(t, models.ForwardStatusInFlight, status)

	require.NoError(t, db.CommitForward(ctx, msg.AccountID, msg.ChannelID, msg.MessageID))

	status, err = db.ForwardStatus(ctx, msg.AccountID, msg.ChannelID, msg.MessageID)
	require.NoError(t, err)
	assert.Equal(t, models.ForwardStatusCommitted, status)
}

func TestReleaseStaleClaims(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	fresh := testMessage("fresh")
	claimed, err := db.TryClaim(ctx, fresh)
	require.NoError(t, err)
	require.True(t, claimed)

	committed := testMessage("committed")
	claimed, err = db.TryClaim(ctx, committed)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, db.CommitForward(ctx, committed.AccountID, committed.ChannelID, committed.MessageID))

	// Nothing is old enough yet.
	released, err := db.ReleaseStaleClaims(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(0), released)

	// With a zero age every inflight claim counts as stale; committed rows
	// must survive.
	released, err = db.ReleaseStaleClaims(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)

	claimed, err = db.TryClaim(ctx, fresh)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = db.TryClaim(ctx, committed)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestRecentForwarded(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	for _, id := range []string{"msg-1", "msg-2", "msg-3"} {
		msg := testMessage(id)
		claimed, err := db.TryClaim(ctx, msg)
		require.NoError(t, err)
		require.True(t, claimed)
		require.NoError(t, db.CommitForward(ctx, msg.AccountID, msg.ChannelID, msg.MessageID))
	}

	// An inflight row must not show up.
	claimed, err := db.TryClaim(ctx, testMessage("pending"))
	require.NoError(t, err)
	require.True(t, claimed)

	records, err := db.RecentForwarded(ctx, "", "", 10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.Equal(t, models.ForwardStatusCommitted, rec.Status)
		assert.Equal(t, "alice", rec.Author)
		assert.Equal(t, "big news", rec.Content)
		assert.NotNil(t, rec.CommittedAt)
	}

	records, err = db.RecentForwarded(ctx, "srv-1", "chan-1", 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = db.RecentForwarded(ctx, "other-server", "", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCursor(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	cursor, err := db.GetCursor(ctx, "chan-1")
	require.NoError(t, err)
	assert.Empty(t, cursor)

	require.NoError(t, db.SetCursor(ctx, "chan-1", "acc-1", "100"))
	require.NoError(t, db.SetCursor(ctx, "chan-1", "acc-1", "200"))

	cursor, err = db.GetCursor(ctx, "chan-1")
	require.NoError(t, err)
	assert.Equal(t, "200", cursor)

	cursor, err = db.GetCursor(ctx, "chan-2")
	require.NoError(t, err)
	assert.Empty(t, cursor)
}

func TestCatalogPersistence(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	srv := &models.Server{ID: "srv-1", Name: "Test Server", AccountID: "acc-1"}
	require.NoError(t, db.UpsertServer(ctx, srv))
	require.NoError(t, db.UpsertChannel(ctx, &models.Channel{
		ID: "chan-1", ServerID: "srv-1", Name: "announcements", IsAnnouncement: true, Priority: 1,
	}))
	require.NoError(t, db.SetCursor(ctx, "chan-1", "acc-1", "555"))

	servers, err := db.LoadCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "Test Server", servers[0].Name)
	require.Len(t, servers[0].Channels, 1)
	assert.Equal(t, "announcements", servers[0].Channels[0].Name)
	assert.Equal(t, "555", servers[0].Channels[0].LastMessageID)

	// Staleness round-trips.
	require.NoError(t, db.MarkServerStale(ctx, "srv-1", true))
	require.NoError(t, db.MarkChannelStale(ctx, "chan-1", true))

	servers, err = db.LoadCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.True(t, servers[0].Stale)
	assert.True(t, servers[0].Channels[0].Stale)

	// Upserting again clears staleness without duplicating rows.
	require.NoError(t, db.UpsertServer(ctx, &models.Server{ID: "srv-1", Name: "Renamed", AccountID: "acc-1"}))
	servers, err = db.LoadCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "Renamed", servers[0].Name)
	assert.False(t, servers[0].Stale)
}

func TestCleanupOldRecords(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	msg := testMessage("msg-1")
	claimed, err := db.TryClaim(ctx, msg)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, db.CommitForward(ctx, msg.AccountID, msg.ChannelID, msg.MessageID))

	// A generous retention window keeps everything.
	require.NoError(t, db.CleanupOldRecords(ctx, 30))
	count, err := db.CountForwarded(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestNewInvalidPath(t *testing.T) {
	_, err := New("/tmp/../../etc/passwd\x00")
	assert.Error(t, err)
}
