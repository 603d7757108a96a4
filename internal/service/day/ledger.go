package day

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campanio/backend/internal/apperr"
	"github.com/campanio/backend/internal/model/chat"
	"github.com/campanio/backend/internal/model/day"
)

var (
	ErrUserRequired = apperr.Unauthenticated("login first")
	ErrDateRequired = apperr.Validation("date is required")
	ErrDayNotFound  = apperr.NotFound("no entry found for this date")
)

// Ledger owns the one-row-per-user-per-date invariant.
type Ledger struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLocation sets the timezone that decides which calendar date is "today".
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// NewLedger creates a Ledger on top of db.
func NewLedger(db *gorm.DB, opts ...Option) *Ledger {
	l := &Ledger{db: db, loc: time.UTC, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DB exposes the underlying handle so sibling services share one connection pool.
func (l *Ledger) DB() *gorm.DB {
	return l.db
}

// Today returns the server-side date key for the current instant.
func (l *Ledger) Today() string {
	return l.now().In(l.loc).Format(day.DateLayout)
}

// EnsureDay returns the Day for (userID, date), creating it if needed.
func (l *Ledger) EnsureDay(ctx context.Context, userID, date string) (day.Day, error) {
	return l.EnsureDayTx(ctx, l.db, userID, date)
}

// EnsureDayTx is EnsureDay inside the caller's transaction. The insert is a
// single ON CONFLICT DO NOTHING statement so two racing requests never see a
// uniqueness violation; the loser simply reads the winner's row.
func (l *Ledger) EnsureDayTx(ctx context.Context, tx *gorm.DB, userID, date string) (day.Day, error) {
	userID = strings.TrimSpace(userID)
	date = strings.TrimSpace(date)
	if userID == "" {
		return day.Day{}, ErrUserRequired
	}
	if date == "" {
		return day.Day{}, ErrDateRequired
	}

	row := day.Day{ID: uuid.NewString(), UserID: userID, Date: date}
	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
			DoNothing: true,
		}).
		Create(&row)
	if res.Error != nil && !errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return day.Day{}, fmt.Errorf("create day: %w", res.Error)
	}
	if res.Error == nil && res.RowsAffected == 1 {
		return row, nil
	}

	existing, err := l.findDay(ctx, tx, userID, date)
	if err != nil {
		return day.Day{}, err
	}
	return existing, nil
}

// FindDay returns the Day for (userID, date) or ErrDayNotFound.
func (l *Ledger) FindDay(ctx context.Context, userID, date string) (day.Day, error) {
	return l.FindDayTx(ctx, l.db, userID, date)
}

// FindDayTx is FindDay inside the caller's transaction.
func (l *Ledger) FindDayTx(ctx context.Context, tx *gorm.DB, userID, date string) (day.Day, error) {
	date = strings.TrimSpace(date)
	if userID == "" {
		return day.Day{}, ErrUserRequired
	}
	if date == "" {
		return day.Day{}, ErrDateRequired
	}
	return l.findDay(ctx, tx, userID, date)
}

func (l *Ledger) findDay(ctx context.Context, tx *gorm.DB, userID, date string) (day.Day, error) {
	var row day.Day
	err := tx.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return day.Day{}, ErrDayNotFound
	}
	if err != nil {
		return day.Day{}, fmt.Errorf("find day: %w", err)
	}
	return row, nil
}

// ListMoods returns every day of the user as (date, mood) pairs ordered by date.
func (l *Ledger) ListMoods(ctx context.Context, userID string) ([]day.MoodEntry, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	entries := make([]day.MoodEntry, 0, 32)
	err := l.db.WithContext(ctx).
		Model(&day.Day{}).
		Select("date", "mood").
		Where("user_id = ?", userID).
		Order("date asc").
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list moods: %w", err)
	}
	return entries, nil
}

// ListDaysWithChats returns the user's days ordered by date, each with its chat
// headers. Messages are not loaded.
func (l *Ledger) ListDaysWithChats(ctx context.Context, userID string) ([]day.Day, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}

	var days []day.Day
	if err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date asc").
		Find(&days).Error; err != nil {
		return nil, fmt.Errorf("list days: %w", err)
	}
	if len(days) == 0 {
		return days, nil
	}

	dayIDs := make([]string, 0, len(days))
	for _, d := range days {
		dayIDs = append(dayIDs, d.ID)
	}

	var chats []chat.Chat
	if err := l.db.WithContext(ctx).
		Where("user_id = ? AND day_id IN ?", userID, dayIDs).
		Order("created_at asc").
		Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	byDay := make(map[string][]chat.Chat, len(days))
	for _, c := range chats {
		byDay[c.DayID] = append(byDay[c.DayID], c)
	}
	for i := range days {
		days[i].Chats = byDay[days[i].ID]
	}
	return days, nil
}
