package journal

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/campanio/backend/internal/apperr"
	"github.com/campanio/backend/internal/logger"
	dayModel "github.com/campanio/backend/internal/model/day"
	catalog "github.com/campanio/backend/internal/model/mood"
	"github.com/campanio/backend/internal/service/day"
)

var (
	ErrMoodRequired        = apperr.Validation("mood is required")
	ErrUnknownMood         = apperr.Validation("unknown mood")
	ErrJournalRequired     = apperr.Validation("journal is required")
	ErrReflectionDisabled  = apperr.External("reflection service unavailable", nil)
	ErrMoodAlreadySaved    = apperr.Conflict("mood already saved for the day")
	ErrJournalAlreadySaved = apperr.Conflict("journal already saved for the day")
)

// Reflector produces a reflection for a journal entry.
type Reflector interface {
	GenerateReflection(ctx context.Context, journal string, edited bool) (string, error)
}

// Outcome reports what a save did. AlreadySaved is informational: the stored
// value was left untouched.
type Outcome struct {
	Day          dayModel.Day
	AlreadySaved bool
}

// Service implements mood and journal writes on top of the day ledger.
type Service struct {
	ledger    *day.Ledger
	db        *gorm.DB
	reflector Reflector
	log       *logger.Logger
}

// NewService wires the service. reflector may be nil when no model is configured.
func NewService(ledger *day.Ledger, reflector Reflector, log *logger.Logger) *Service {
	return &Service{
		ledger:    ledger,
		db:        ledger.DB(),
		reflector: reflector,
		log:       log.With("service", "JournalService"),
	}
}

// SaveMood records today's mood unless one is already stored.
func (s *Service) SaveMood(ctx context.Context, userID, mood string) (Outcome, error) {
	id, err := validateMood(mood)
	if err != nil {
		return Outcome{}, err
	}
	return s.saveOnce(ctx, userID, s.ledger.Today(), "mood", id)
}

// EditMood overwrites the mood of an existing day.
func (s *Service) EditMood(ctx context.Context, userID, date, mood string) (dayModel.Day, error) {
	id, err := validateMood(mood)
	if err != nil {
		return dayModel.Day{}, err
	}
	return s.overwrite(ctx, userID, date, map[string]any{"mood": id})
}

// SaveJournal records today's journal unless one is already stored, then
// generates its reflection. A reflection failure is returned alongside the
// saved day; the journal is not rolled back.
func (s *Service) SaveJournal(ctx context.Context, userID, journal string) (Outcome, error) {
	if strings.TrimSpace(journal) == "" {
		return Outcome{}, ErrJournalRequired
	}

	outcome, err := s.saveOnce(ctx, userID, s.ledger.Today(), "journal", journal)
	if err != nil || outcome.AlreadySaved {
		return outcome, err
	}

	updated, err := s.reflect(ctx, outcome.Day, journal, false)
	outcome.Day = updated
	return outcome, err
}

// EditJournal overwrites the journal of an existing day and regenerates its
// reflection.
func (s *Service) EditJournal(ctx context.Context, userID, date, journal string) (dayModel.Day, error) {
	if strings.TrimSpace(journal) == "" {
		return dayModel.Day{}, ErrJournalRequired
	}

	updated, err := s.overwrite(ctx, userID, date, map[string]any{"journal": journal})
	if err != nil {
		return dayModel.Day{}, err
	}
	return s.reflect(ctx, updated, journal, true)
}

// saveOnce writes column only while it is still empty. The condition lives in
// the UPDATE so concurrent saves cannot both win.
func (s *Service) saveOnce(ctx context.Context, userID, date, column, value string) (Outcome, error) {
	d, err := s.ledger.EnsureDay(ctx, userID, date)
	if err != nil {
		return Outcome{}, err
	}

	res := s.db.WithContext(ctx).
		Model(&dayModel.Day{}).
		Where("id = ? AND ("+column+" = '' OR "+column+" IS NULL)", d.ID).
		Update(column, value)
	if res.Error != nil {
		return Outcome{}, fmt.Errorf("save %s: %w", column, res.Error)
	}

	current, err := s.ledger.FindDay(ctx, userID, date)
	if err != nil {
		return Outcome{}, err
	}
	if res.RowsAffected == 0 {
		s.log.Debug("field already saved", "field", column, "userID", userID, "date", date)
		return Outcome{Day: current, AlreadySaved: true}, nil
	}
	return Outcome{Day: current}, nil
}

func (s *Service) overwrite(ctx context.Context, userID, date string, fields map[string]any) (dayModel.Day, error) {
	d, err := s.ledger.FindDay(ctx, userID, date)
	if err != nil {
		return dayModel.Day{}, err
	}

	if err := s.db.WithContext(ctx).
		Model(&dayModel.Day{}).
		Where("id = ?", d.ID).
		Updates(fields).Error; err != nil {
		return dayModel.Day{}, fmt.Errorf("update day: %w", err)
	}
	return s.ledger.FindDay(ctx, userID, d.Date)
}

func (s *Service) reflect(ctx context.Context, d dayModel.Day, journal string, edited bool) (dayModel.Day, error) {
	if s.reflector == nil {
		return d, ErrReflectionDisabled
	}

	text, err := s.reflector.GenerateReflection(ctx, journal, edited)
	if err != nil {
		s.log.Warn("reflection not stored", "dayID", d.ID, "error", err)
		if apperr.KindOf(err) != apperr.KindExternal {
			err = apperr.External("reflection generation failed", err)
		}
		return d, err
	}

	if err := s.db.WithContext(ctx).
		Model(&dayModel.Day{}).
		Where("id = ?", d.ID).
		Update("reflection", text).Error; err != nil {
		return d, fmt.Errorf("store reflection: %w", err)
	}
	d.Reflection = text
	return d, nil
}

func validateMood(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrMoodRequired
	}
	id, ok := catalog.Normalize(raw)
	if !ok {
		return "", ErrUnknownMood
	}
	return id, nil
}
