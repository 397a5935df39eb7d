package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bogdan-lmk/discord-parer/internal/constants"
	"github.com/bogdan-lmk/discord-parer/internal/database"
	apperrors "github.com/bogdan-lmk/discord-parer/internal/errors"
	"github.com/bogdan-lmk/discord-parer/internal/metrics"
	"github.com/bogdan-lmk/discord-parer/internal/models"
	"github.com/bogdan-lmk/discord-parer/internal/tracing"
	discordtypes "github.com/bogdan-lmk/discord-parer/pkg/discord/types"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Relay drives the forwarding pipeline: one worker per active channel pulls
// messages after the channel cursor, claims each one, delivers it to the
// sink and commits. Claim before deliver and commit after deliver is what
// makes forwarding exactly-once across restarts.
type Relay struct {
	registry *AccountRegistry
	catalog  *Catalog
	db       *database.Database
	sink     Sink
	logger   *logrus.Logger

	pollInterval time.Duration
	batchSize    int
	skipPoison   bool

	mu      sync.Mutex
	workers map[string]*channelWorker
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type channelWorker struct {
	ref    ChannelRef
	kick   chan struct{}
	cancel context.CancelFunc
}

func NewRelay(registry *AccountRegistry, catalog *Catalog, db *database.Database, sink Sink, cfg models.Config, logger *logrus.Logger) *Relay {
	return &Relay{
		registry:     registry,
		catalog:      catalog,
		db:           db,
		sink:         sink,
		logger:       logger,
		pollInterval: time.Duration(cfg.Discord.PollIntervalSec) * time.Second,
		batchSize:    cfg.Discord.PollBatchSize,
		skipPoison:   cfg.Relay.SkipPoison(),
		workers:      make(map[string]*channelWorker),
	}
}

// Start recovers claims abandoned by a previous run, then spins up channel
// workers and the worker reconciliation loop.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("relay is already running")
	}

	// Only this process writes claims, so any inflight row at startup was
	// orphaned by the previous run and must become claimable again before
	// the workers start reading cursors.
	released, err := r.db.ReleaseStaleClaims(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to recover stale claims: %w", err)
	}
	if released > 0 {
		r.logger.WithField("count", released).Info("Released orphaned delivery claims from previous run")
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.runCtx = runCtx
	r.cancel = cancel
	r.running = true

	r.syncWorkersLocked()

	r.wg.Add(1)
	go r.reconcileLoop(runCtx)

	r.logger.WithFields(logrus.Fields{
		"poll_interval": r.pollInterval,
		"channels":      len(r.workers),
	}).Info("Relay started")
	return nil
}

// Stop cancels every worker and waits for in-flight deliveries to finish.
func (r *Relay) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	r.wg.Wait()

	r.mu.Lock()
	r.workers = make(map[string]*channelWorker)
	r.mu.Unlock()
	r.logger.Info("Relay stopped")
}

// SyncWorkers reconciles the worker set with the catalog. Called after every
// discovery pass so new channels start forwarding without a restart.
func (r *Relay) SyncWorkers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.syncWorkersLocked()
}

// Kick wakes the worker for channelID immediately instead of waiting for the
// next poll tick. Used by the gateway event path; the message itself is not
// trusted, the worker re-reads from the cursor.
func (r *Relay) Kick(channelID string) {
	r.mu.Lock()
	w := r.workers[channelID]
	r.mu.Unlock()
	if w == nil {
		return
	}
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// ConsumeGateway funnels MESSAGE_CREATE events from one account's gateway
// into worker kicks until the channel closes.
func (r *Relay) ConsumeGateway(events <-chan discordtypes.Message) {
	for msg := range events {
		r.Kick(msg.ChannelID)
	}
}

func (r *Relay) reconcileLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.SyncWorkers()
		}
	}
}

// syncWorkersLocked starts workers for newly active channels and stops ones
// whose channel went stale. Callers hold r.mu.
func (r *Relay) syncWorkersLocked() {
	active := r.catalog.ActiveChannels()
	seen := make(map[string]bool, len(active))
	for _, ref := range active {
		seen[ref.ChannelID] = true
		if _, ok := r.workers[ref.ChannelID]; ok {
			continue
		}
		workerCtx, cancel := context.WithCancel(r.runCtx)
		w := &channelWorker{
			ref:    ref,
			kick:   make(chan struct{}, 1),
			cancel: cancel,
		}
		r.workers[ref.ChannelID] = w
		r.wg.Add(1)
		go r.runWorker(workerCtx, w)
	}

	for id, w := range r.workers {
		if !seen[id] {
			w.cancel()
			delete(r.workers, id)
			r.logger.WithField("channel_id", id).Info("Stopped worker for stale channel")
		}
	}

	metrics.SetGauge("relay_active_workers", float64(len(r.workers)), nil, "Channel workers currently running")
}

func (r *Relay) runWorker(ctx context.Context, w *channelWorker) {
	defer r.wg.Done()

	logger := r.logger.WithFields(logrus.Fields{
		"channel_id": w.ref.ChannelID,
		"channel":    w.ref.ChannelName,
		"server":     w.ref.ServerName,
	})
	logger.Info("Channel worker started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	r.drainChannel(ctx, w.ref, logger)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.kick:
		}
		r.drainChannel(ctx, w.ref, logger)
	}
}

// drainChannel pulls and processes messages after the cursor until the
// channel is caught up or a failure makes further progress pointless.
func (r *Relay) drainChannel(ctx context.Context, ref ChannelRef, logger *logrus.Entry) {
	session := r.registry.Session(ref.AccountID)
	if session == nil {
		return
	}

	for {
		cursor, err := r.db.GetCursor(ctx, ref.ChannelID)
		if err != nil {
			logger.WithError(err).Error("Failed to read channel cursor")
			return
		}

		var batch []discordtypes.Message
		err = session.Call(ctx, func(ctx context.Context) error {
			var err error
			batch, err = session.Client.GetMessages(ctx, ref.ChannelID, cursor, r.batchSize)
			return err
		})
		if err != nil {
			if apperrors.IsAuthError(err) {
				session.SetState(models.AccountDegraded)
			}
			logger.WithError(err).Warn("Failed to fetch channel messages")
			return
		}
		if len(batch) == 0 {
			return
		}

		for _, raw := range batch {
			msg := r.toMessage(ref, raw)
			if err := r.processMessage(ctx, msg, logger); err != nil {
				return
			}
		}

		if len(batch) < r.batchSize {
			return
		}
	}
}

// processMessage runs one message through claim, deliver, commit. A non-nil
// return halts the current drain; the cursor decides whether the message is
// seen again.
func (r *Relay) processMessage(ctx context.Context, msg *models.Message, logger *logrus.Entry) error {
	ctx, span := tracing.StartSpan(ctx, "relay.process_message",
		attribute.String("channel.id", msg.ChannelID),
		attribute.String("message.id", msg.MessageID),
	)
	defer span.End()

	claimed, err := r.db.TryClaim(ctx, msg)
	if err != nil {
		tracing.RecordError(ctx, err)
		logger.WithError(err).Error("Failed to claim message")
		return err
	}
	if !claimed {
		// The key already has a record. Only a committed one proves the
		// message was delivered; an inflight claim belongs to a drain that
		// never resolved it, and skipping past it would lose the message.
		status, err := r.db.ForwardStatus(ctx, msg.AccountID, msg.ChannelID, msg.MessageID)
		if err != nil {
			tracing.RecordError(ctx, err)
			logger.WithError(err).Error("Failed to read forward record status")
			return err
		}
		if status != models.ForwardStatusCommitted {
			logger.WithFields(logrus.Fields{
				"message_id": msg.MessageID,
				"status":     status,
			}).Warn("Unresolved claim for message, holding cursor")
			return fmt.Errorf("message %s has unresolved claim", msg.MessageID)
		}
		return r.advanceCursor(ctx, msg, logger)
	}

	if err := r.sink.Deliver(ctx, msg); err != nil {
		tracing.RecordError(ctx, err)
		// Release on a fresh context: the delivery failure may be the
		// run context shutting down, and the claim must not be orphaned.
		releaseCtx, cancel := context.WithTimeout(context.Background(), constants.ClaimReleaseTimeoutSec*time.Second)
		releaseErr := r.db.ReleaseClaim(releaseCtx, msg.AccountID, msg.ChannelID, msg.MessageID)
		cancel()
		if releaseErr != nil {
			logger.WithError(releaseErr).Error("Failed to release claim after delivery failure")
		}

		// A delivery cut short by shutdown says nothing about the message
		// itself. Leave the cursor alone and retry on the next run.
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if apperrors.IsRetryable(err) {
			logger.WithError(err).WithField("message_id", msg.MessageID).Warn("Delivery failed, will retry on next pass")
			return err
		}

		// Permanent failure. Policy decides between skipping past the
		// message and halting the channel on it.
		metrics.IncrementCounter("relay_poison_messages", nil, "Messages that failed delivery permanently")
		if !r.skipPoison {
			logger.WithError(err).WithField("message_id", msg.MessageID).Error("Delivery failed permanently, halting channel on message")
			return err
		}
		logger.WithError(err).WithField("message_id", msg.MessageID).Error("Delivery failed permanently, skipping message")
		return r.advanceCursor(ctx, msg, logger)
	}

	if err := r.db.CommitForward(ctx, msg.AccountID, msg.ChannelID, msg.MessageID); err != nil {
		tracing.RecordError(ctx, err)
		logger.WithError(err).Error("Failed to commit forward record")
		return err
	}

	metrics.IncrementCounter("relay_messages_forwarded", nil, "Messages forwarded end to end")
	return r.advanceCursor(ctx, msg, logger)
}

func (r *Relay) advanceCursor(ctx context.Context, msg *models.Message, logger *logrus.Entry) error {
	if err := r.db.SetCursor(ctx, msg.ChannelID, msg.AccountID, msg.MessageID); err != nil {
		logger.WithError(err).Error("Failed to advance channel cursor")
		return err
	}
	return nil
}

func (r *Relay) toMessage(ref ChannelRef, raw discordtypes.Message) *models.Message {
	attachments := make([]string, 0, len(raw.Attachments))
	for _, a := range raw.Attachments {
		attachments = append(attachments, a.URL)
	}
	return &models.Message{
		AccountID:   ref.AccountID,
		ServerID:    ref.ServerID,
		ServerName:  ref.ServerName,
		ChannelID:   ref.ChannelID,
		ChannelName: ref.ChannelName,
		MessageID:   raw.ID,
		Author:      raw.Author.Username,
		Content:     raw.Content,
		Timestamp:   raw.Timestamp,
		Attachments: attachments,
	}
}
