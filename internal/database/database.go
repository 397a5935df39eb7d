package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bogdan-lmk/discord-parer/internal/migrations"
	"github.com/bogdan-lmk/discord-parer/internal/models"
	"github.com/bogdan-lmk/discord-parer/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Database persists the forward-record set (the dedup barrier), the
// per-channel ingestion cursors, and a durable mirror of the catalog so a
// restart can answer queries before the first discovery pass finishes.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	encryptor, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: encryptor}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// TryClaim atomically reserves the (account, channel, message) key. It
// returns true for exactly one caller per key; every later call, including
// concurrent ones, gets false. The row stays in 'inflight' status until
// CommitForward or ReleaseClaim resolves it.
func (d *Database) TryClaim(ctx context.Context, msg *models.Message) (bool, error) {
	author, err := d.encryptor.EncryptIfEnabled(msg.Author)
	if err != nil {
		return false, fmt.Errorf("failed to encrypt author: %w", err)
	}
	content, err := d.encryptor.EncryptIfEnabled(msg.Content)
	if err != nil {
		return false, fmt.Errorf("failed to encrypt content: %w", err)
	}

	var res sql.Result
	err = retryableDBOperation(ctx, func() error {
		var execErr error
		res, execErr = d.db.ExecContext(ctx, ClaimForwardQuery,
			msg.AccountID, msg.ServerID, msg.ChannelID, msg.MessageID,
			author, content, msg.Timestamp, time.Now().UTC(),
		)
		return execErr
	}, "claim forward record")
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return rows == 1, nil
}

// CommitForward durably marks a claimed message as delivered. A message with
// a committed record is never forwarded again.
func (d *Database) CommitForward(ctx context.Context, accountID, channelID, messageID string) error {
	return retryableDBOperation(ctx, func() error {
		res, err := d.db.ExecContext(ctx, CommitForwardQuery,
			time.Now().UTC(), accountID, channelID, messageID)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("no inflight claim for message %s", messageID)
		}
		return nil
	}, "commit forward record")
}

// ReleaseClaim drops an inflight reservation after a permanent delivery
// failure so the key is claimable again later.
func (d *Database) ReleaseClaim(ctx context.Context, accountID, channelID, messageID string) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, ReleaseClaimQuery, accountID, channelID, messageID)
		return err
	}, "release claim")
}

// ReleaseStaleClaims deletes inflight rows older than maxAge. Run at startup:
// a claim orphaned by a crash before commit must be retried, never treated as
// forwarded.
func (d *Database) ReleaseStaleClaims(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	var released int64
	err := retryableDBOperation(ctx, func() error {
		res, execErr := d.db.ExecContext(ctx, ReleaseStaleClaimsQuery, cutoff)
		if execErr != nil {
			return execErr
		}
		released, execErr = res.RowsAffected()
		return execErr
	}, "release stale claims")
	return released, err
}

// ForwardStatus reports the state of the forward record for the given key.
// An empty status means no record exists.
func (d *Database) ForwardStatus(ctx context.Context, accountID, channelID, messageID string) (models.ForwardStatus, error) {
	var status string
	err := retryableDBOperation(ctx, func() error {
		row := d.db.QueryRowContext(ctx, SelectForwardStatusQuery, accountID, channelID, messageID)
		return row.Scan(&status)
	}, "select forward status")
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return models.ForwardStatus(status), nil
}

// RecentForwarded returns committed records newest-first by commit time.
// Empty serverID or channelID matches everything.
func (d *Database) RecentForwarded(ctx context.Context, serverID, channelID string, limit int) ([]models.ForwardRecord, error) {
	query := SelectRecentForwardedQuery
	args := []interface{}{}
	if serverID != "" {
		query += " AND server_id = ?"
		args = append(args, serverID)
	}
	if channelID != "" {
		query += " AND channel_id = ?"
		args = append(args, channelID)
	}
	query += " ORDER BY committed_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query forward records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []models.ForwardRecord
	for rows.Next() {
		var rec models.ForwardRecord
		var author, content string
		var sourceTS, committedAt sql.NullTime
		if err := rows.Scan(
			&rec.ID, &rec.AccountID, &rec.ServerID, &rec.ChannelID, &rec.MessageID,
			&author, &content, &sourceTS, &rec.Status, &rec.ClaimedAt, &committedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan forward record: %w", err)
		}
		if rec.Author, err = d.encryptor.DecryptIfEnabled(author); err != nil {
			return nil, fmt.Errorf("failed to decrypt author: %w", err)
		}
		if rec.Content, err = d.encryptor.DecryptIfEnabled(content); err != nil {
			return nil, fmt.Errorf("failed to decrypt content: %w", err)
		}
		if sourceTS.Valid {
			rec.SourceTimestamp = sourceTS.Time
		}
		if committedAt.Valid {
			t := committedAt.Time
			rec.CommittedAt = &t
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountForwarded returns the number of committed forward records.
func (d *Database) CountForwarded(ctx context.Context) (int64, error) {
	var count int64
	err := d.db.QueryRowContext(ctx, CountCommittedQuery).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count forward records: %w", err)
	}
	return count, nil
}

// CleanupOldRecords deletes committed records older than the retention
// window. Inflight rows are untouched.
func (d *Database) CleanupOldRecords(ctx context.Context, retentionDays int) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, DeleteOldForwardRecordsQuery, retentionDays)
		return err
	}, "cleanup old records")
}

// GetCursor returns the channel's last processed message ID, or "" when the
// channel has never been ingested.
func (d *Database) GetCursor(ctx context.Context, channelID string) (string, error) {
	var cursor string
	err := d.db.QueryRowContext(ctx, SelectCursorQuery, channelID).Scan(&cursor)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cursor: %w", err)
	}
	return cursor, nil
}

// SetCursor advances the channel's ingestion cursor. Only the relay engine
// calls this, and only forward.
func (d *Database) SetCursor(ctx context.Context, channelID, accountID, lastMessageID string) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, UpsertCursorQuery, channelID, accountID, lastMessageID)
		return err
	}, "set cursor")
}

// UpsertServer writes a catalog server entry.
func (d *Database) UpsertServer(ctx context.Context, srv *models.Server) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, UpsertServerQuery, srv.ID, srv.Name, srv.AccountID, srv.Stale)
		return err
	}, "upsert server")
}

// UpsertChannel writes a catalog channel entry.
func (d *Database) UpsertChannel(ctx context.Context, ch *models.Channel) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, UpsertChannelQuery,
			ch.ID, ch.ServerID, ch.Name, ch.IsAnnouncement, ch.Priority, ch.Stale)
		return err
	}, "upsert channel")
}

// MarkServerStale flips a server's staleness flag without touching anything else.
func (d *Database) MarkServerStale(ctx context.Context, serverID string, stale bool) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, MarkServerStaleQuery, stale, serverID)
		return err
	}, "mark server stale")
}

// MarkChannelStale flips a channel's staleness flag.
func (d *Database) MarkChannelStale(ctx context.Context, channelID string, stale bool) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, MarkChannelStaleQuery, stale, channelID)
		return err
	}, "mark channel stale")
}

// LoadCatalog reads the persisted catalog, channels attached to their
// servers and cursors joined in.
func (d *Database) LoadCatalog(ctx context.Context) ([]*models.Server, error) {
	rows, err := d.db.QueryContext(ctx, SelectServersQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query servers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]*models.Server)
	var servers []*models.Server
	for rows.Next() {
		srv := &models.Server{}
		if err := rows.Scan(&srv.ID, &srv.Name, &srv.AccountID, &srv.Stale); err != nil {
			return nil, fmt.Errorf("failed to scan server: %w", err)
		}
		byID[srv.ID] = srv
		servers = append(servers, srv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	chRows, err := d.db.QueryContext(ctx, SelectChannelsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer func() { _ = chRows.Close() }()

	for chRows.Next() {
		ch := &models.Channel{}
		if err := chRows.Scan(&ch.ID, &ch.ServerID, &ch.Name,
			&ch.IsAnnouncement, &ch.Priority, &ch.Stale, &ch.LastMessageID); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		if srv, ok := byID[ch.ServerID]; ok {
			srv.Channels = append(srv.Channels, ch)
		}
	}
	return servers, chRows.Err()
}
