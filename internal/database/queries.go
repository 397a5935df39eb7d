package database

// Forward record queries
const (
	ClaimForwardQuery = `
		INSERT INTO forward_records (
			account_id, server_id, channel_id, message_id,
			author, content, source_timestamp, status, claimed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 'inflight', ?)
		ON CONFLICT(account_id, channel_id, message_id) DO NOTHING
	`

	CommitForwardQuery = `
		UPDATE forward_records
		SET status = 'committed', committed_at = ?
		WHERE account_id = ? AND channel_id = ? AND message_id = ? AND status = 'inflight'
	`

	ReleaseClaimQuery = `
		DELETE FROM forward_records
		WHERE account_id = ? AND channel_id = ? AND message_id = ? AND status = 'inflight'
	`

	ReleaseStaleClaimsQuery = `
		DELETE FROM forward_records
		WHERE status = 'inflight' AND claimed_at < ?
	`

	SelectForwardStatusQuery = `
		SELECT status FROM forward_records
		WHERE account_id = ? AND channel_id = ? AND message_id = ?
	`

	SelectRecentForwardedQuery = `
		SELECT id, account_id, server_id, channel_id, message_id,
		       author, content, source_timestamp, status, claimed_at, committed_at
		FROM forward_records
		WHERE status = 'committed'
	`

	CountCommittedQuery = `
		SELECT COUNT(*) FROM forward_records WHERE status = 'committed'
	`

	DeleteOldForwardRecordsQuery = `
		DELETE FROM forward_records
		WHERE status = 'committed'
		  AND committed_at < datetime('now', '-' || ? || ' days')
	`
)

// Cursor queries
const (
	UpsertCursorQuery = `
		INSERT INTO channel_cursors (channel_id, account_id, last_message_id, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(channel_id) DO UPDATE SET
			account_id = excluded.account_id,
			last_message_id = excluded.last_message_id,
			updated_at = CURRENT_TIMESTAMP
	`

	SelectCursorQuery = `
		SELECT last_message_id FROM channel_cursors WHERE channel_id = ?
	`
)

// Catalog queries
const (
	UpsertServerQuery = `
		INSERT INTO servers (id, name, account_id, stale, first_seen, last_seen)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			account_id = excluded.account_id,
			stale = excluded.stale,
			last_seen = CURRENT_TIMESTAMP
	`

	UpsertChannelQuery = `
		INSERT INTO channels (id, server_id, name, is_announcement, priority, stale, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			server_id = excluded.server_id,
			name = excluded.name,
			is_announcement = excluded.is_announcement,
			priority = excluded.priority,
			stale = excluded.stale,
			last_seen = CURRENT_TIMESTAMP
	`

	MarkServerStaleQuery = `
		UPDATE servers SET stale = ? WHERE id = ?
	`

	MarkChannelStaleQuery = `
		UPDATE channels SET stale = ? WHERE id = ?
	`

	SelectServersQuery = `
		SELECT id, name, account_id, stale FROM servers ORDER BY stale ASC, name ASC
	`

	SelectChannelsQuery = `
		SELECT c.id, c.server_id, c.name, c.is_announcement, c.priority, c.stale,
		       COALESCE(cc.last_message_id, '')
		FROM channels c
		LEFT JOIN channel_cursors cc ON cc.channel_id = c.id
		ORDER BY c.server_id, c.priority ASC
	`
)
