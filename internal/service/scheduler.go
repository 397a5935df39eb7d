package service

import (
	"context"
	"time"

	"github.com/bogdan-lmk/discord-parer/internal/constants"
	"github.com/bogdan-lmk/discord-parer/internal/database"

	"github.com/sirupsen/logrus"
)

// Scheduler owns the periodic background work: rediscovery and forward
// record retention cleanup.
type Scheduler struct {
	commands          *Commands
	db                *database.Database
	discoveryInterval time.Duration
	cleanupInterval   time.Duration
	retentionDays     int
	logger            *logrus.Logger
	stopCh            chan struct{}
}

func NewScheduler(commands *Commands, db *database.Database, discoveryIntervalHours, cleanupIntervalHours, retentionDays int, logger *logrus.Logger) *Scheduler {
	if discoveryIntervalHours <= 0 {
		discoveryIntervalHours = constants.DefaultDiscoveryIntervalH
	}
	if cleanupIntervalHours <= 0 {
		cleanupIntervalHours = 24
	}
	if retentionDays <= 0 {
		retentionDays = constants.DefaultRetentionDays
	}
	return &Scheduler{
		commands:          commands,
		db:                db,
		discoveryInterval: time.Duration(discoveryIntervalHours) * time.Hour,
		cleanupInterval:   time.Duration(cleanupIntervalHours) * time.Hour,
		retentionDays:     retentionDays,
		logger:            logger,
		stopCh:            make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	discoveryTicker := time.NewTicker(s.discoveryInterval)
	defer discoveryTicker.Stop()
	cleanupTicker := time.NewTicker(s.cleanupInterval)
	defer cleanupTicker.Stop()

	s.logger.WithFields(logrus.Fields{
		"discovery_interval": s.discoveryInterval,
		"cleanup_interval":   s.cleanupInterval,
	}).Info("Scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Scheduler stop signal received, stopping")
			return
		case <-discoveryTicker.C:
			s.runDiscovery(ctx)
		case <-cleanupTicker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) runDiscovery(ctx context.Context) {
	diff := s.commands.Discover(ctx)
	if diff.Empty() && len(diff.AccountsFailed) == 0 {
		s.logger.Debug("Scheduled discovery found no changes")
	}
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	s.logger.WithField("retention_days", s.retentionDays).Info("Running forward record cleanup")
	if err := s.db.CleanupOldRecords(ctx, s.retentionDays); err != nil {
		s.logger.WithError(err).Error("Forward record cleanup failed")
	}
}
