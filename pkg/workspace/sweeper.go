package workspace

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/workspaces/pkg/observability"
)

// DefaultSweepSchedule runs the invite sweep every fifteen minutes
const DefaultSweepSchedule = "@every 15m"

// InviteSweeper periodically expires pending invites past their expiry
type InviteSweeper struct {
	manager *Manager
	cron    *cron.Cron
	logger  *observability.Logger
	timeout time.Duration
}

// NewInviteSweeper schedules ExpireInvites on a cron spec such as
// "@every 15m" or "0 * * * *"
func NewInviteSweeper(manager *Manager, schedule string, logger *observability.Logger) (*InviteSweeper, error) {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	s := &InviteSweeper{
		manager: manager,
		cron:    cron.New(),
		logger:  logger.WithField("component", "invite_sweeper"),
		timeout: time.Minute,
	}
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid invite sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running the schedule in the background
func (s *InviteSweeper) Start() {
	s.cron.Start()
}

// Stop stops the schedule and waits for a running sweep to finish
func (s *InviteSweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs a sweep immediately
func (s *InviteSweeper) RunOnce(ctx context.Context) (int, error) {
	return s.manager.ExpireInvites(ctx)
}

func (s *InviteSweeper) tick() {
	defer observability.RecoverPanic(s.logger, "invite sweep")

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	expired, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Invite sweep failed")
		return
	}
	if expired > 0 {
		s.logger.Infof("Expired %d invites", expired)
	}
}
