package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
)

// AllocatorService assigns concrete future slots to queued posts under the
// account's posting policy. Allocation is serialized per account.
type AllocatorService interface {
	Allocate(ctx context.Context, accountID int64) (*models.Post, error)
	AllocateAll(ctx context.Context, accountID int64) (int, error)
	Reorder(ctx context.Context, accountID int64, orderedPostIDs []int64) error
}

type allocatorService struct {
	db            *sql.DB
	pr            repository.PostRepository
	sa            repository.SocialAccountRepository
	lookaheadDays int
	now           func() time.Time

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewAllocatorService(db *sql.DB, pr repository.PostRepository, sa repository.SocialAccountRepository, cfg config.Scheduler) AllocatorService {
	return &allocatorService{
		db:            db,
		pr:            pr,
		sa:            sa,
		lookaheadDays: cfg.LookaheadDays,
		now:           time.Now,
		locks:         make(map[int64]*sync.Mutex),
	}
}

func (s *allocatorService) accountLock(accountID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[accountID] = lock
	}
	return lock
}

// Allocate assigns the earliest valid slot to the oldest queued post of the
// account. Returns (nil, nil) when the queue is empty.
func (s *allocatorService) Allocate(ctx context.Context, accountID int64) (*models.Post, error) {
	lock := s.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	return s.allocateLocked(ctx, accountID)
}

func (s *allocatorService) allocateLocked(ctx context.Context, accountID int64) (*models.Post, error) {
	acc, err := s.sa.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("account %d not found", accountID)
	}
	if err := acc.ValidatePolicy(); err != nil {
		return nil, err
	}

	queued, err := s.pr.ListQueued(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(queued) == 0 {
		return nil, nil
	}
	post := queued[0]

	slot, err := s.findSlot(ctx, acc)
	if err != nil {
		return nil, err
	}

	ok, err := s.pr.Schedule(ctx, post.ID, slot)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The post changed state underneath us; nothing was assigned.
		return nil, nil
	}

	post.Status = models.PostStatusScheduled
	post.ScheduledTime = &slot
	post.QueuePosition = nil
	slog.Info("slot allocated", "post_id", post.ID, "account_id", accountID, "slot", slot)
	return post, nil
}

// AllocateAll drains the account's queue, one slot per queued post, stopping
// at the first allocation failure.
func (s *allocatorService) AllocateAll(ctx context.Context, accountID int64) (int, error) {
	lock := s.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	allocated := 0
	for {
		post, err := s.allocateLocked(ctx, accountID)
		if err != nil {
			return allocated, err
		}
		if post == nil {
			return allocated, nil
		}
		allocated++
	}
}

// findSlot walks forward day by day in the account's timezone looking for the
// first time-of-day that respects spacing and the daily cap.
func (s *allocatorService) findSlot(ctx context.Context, acc *models.SocialAccount) (time.Time, error) {
	times, err := acc.TimesOfDay()
	if err != nil {
		return time.Time{}, err
	}
	loc, err := acc.Location()
	if err != nil {
		return time.Time{}, err
	}
	minInterval := acc.MinInterval()

	now := s.now()
	horizon := now.AddDate(0, 0, s.lookaheadDays)

	localNow := now.In(loc)
	dayStart := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, loc)

	existing, err := s.pr.ListScheduledBetween(ctx, acc.ID, dayStart, horizon)
	if err != nil {
		return time.Time{}, err
	}

	cursor := now
	for _, p := range existing {
		if p.ScheduledTime == nil {
			continue
		}
		if next := p.ScheduledTime.Add(minInterval); next.After(cursor) {
			cursor = next
		}
	}

	for day := dayStart; day.Before(horizon); day = day.AddDate(0, 0, 1) {
		if acc.SkipWeekends {
			switch day.Weekday() {
			case time.Saturday, time.Sunday:
				continue
			}
		}

		dayPosts := postsOnDay(existing, day, loc)
		if len(dayPosts) >= acc.MaxPostsPerDay {
			continue
		}

		for _, tod := range times {
			// time.Date normalizes wall-clock times that do not exist on DST
			// transition days.
			slot := time.Date(day.Year(), day.Month(), day.Day(),
				int(tod/time.Hour), int(tod%time.Hour/time.Minute), 0, 0, loc)
			if !slot.After(cursor) {
				continue
			}
			if !respectsSpacing(slot, dayPosts, minInterval) {
				continue
			}
			return slot, nil
		}
	}

	return time.Time{}, ErrNoSlot
}

func postsOnDay(posts []*models.Post, day time.Time, loc *time.Location) []*models.Post {
	var out []*models.Post
	for _, p := range posts {
		if p.ScheduledTime == nil {
			continue
		}
		local := p.ScheduledTime.In(loc)
		if local.Year() == day.Year() && local.YearDay() == day.YearDay() {
			out = append(out, p)
		}
	}
	return out
}

func respectsSpacing(slot time.Time, dayPosts []*models.Post, minInterval time.Duration) bool {
	for _, p := range dayPosts {
		gap := slot.Sub(*p.ScheduledTime)
		if gap < 0 {
			gap = -gap
		}
		if gap < minInterval {
			return false
		}
	}
	return true
}

// Reorder reassigns queue positions for the account's queued posts in the
// given order. Scheduled posts are never touched and no allocation happens.
func (s *allocatorService) Reorder(ctx context.Context, accountID int64, orderedPostIDs []int64) error {
	if len(orderedPostIDs) == 0 {
		return errors.New("no post ids given")
	}

	queued, err := s.pr.ListQueued(ctx, accountID)
	if err != nil {
		return err
	}

	queuedSet := make(map[int64]bool, len(queued))
	for _, p := range queued {
		queuedSet[p.ID] = true
	}
	for _, id := range orderedPostIDs {
		if !queuedSet[id] {
			return fmt.Errorf("post %d is not queued for account %d", id, accountID)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	for i, id := range orderedPostIDs {
		ok, err := s.pr.SetQueuePosition(ctx, tx, id, accountID, i+1)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("post %d changed state during reorder", id)
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
