package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campanio/backend/internal/apperr"
	"github.com/campanio/backend/internal/logger"
	"github.com/campanio/backend/internal/model/chat"
	dayModel "github.com/campanio/backend/internal/model/day"
	"github.com/campanio/backend/internal/service/day"
)

var (
	ErrChatIDRequired     = apperr.Validation("chat id is required")
	ErrMessagesRequired   = apperr.Validation("messages are required")
	ErrUnknownRole        = apperr.Validation("unknown message role")
	ErrIncompleteExchange = apperr.Validation("last two messages must be a user message followed by an assistant reply")
	ErrMessageIDRequired  = apperr.Validation("message ids are required")
	ErrDuplicateMessageID = apperr.Validation("user and assistant messages need distinct ids")
	ErrChatNotFound       = apperr.NotFound("chat not found")
	ErrAlreadySaved       = apperr.Conflict("messages already saved")
)

// Exchange is the persisted pair produced by AppendExchange.
type Exchange struct {
	Chat             chat.Chat
	UserMessage      chat.Message
	AssistantMessage chat.Message
}

// Service persists chats and their messages.
type Service struct {
	ledger *day.Ledger
	db     *gorm.DB
	now    func() time.Time
	log    *logger.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService binds the chat ledger to the day ledger's database.
func NewService(ledger *day.Ledger, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		ledger: ledger,
		db:     ledger.DB(),
		now:    time.Now,
		log:    log.With("service", "ChatService"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AppendExchange stores the last user/assistant pair of messages under chatID,
// creating the day and the chat when they do not exist yet. Everything happens
// in one transaction.
func (s *Service) AppendExchange(ctx context.Context, userID, chatID, date string, messages []chat.UIMessage) (Exchange, error) {
	chatID = strings.TrimSpace(chatID)
	if userID == "" {
		return Exchange{}, day.ErrUserRequired
	}
	if chatID == "" {
		return Exchange{}, ErrChatIDRequired
	}
	if strings.TrimSpace(date) == "" {
		return Exchange{}, day.ErrDateRequired
	}

	userMsg, assistantMsg, err := lastExchange(messages)
	if err != nil {
		return Exchange{}, err
	}

	var result Exchange
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := s.ledger.EnsureDayTx(ctx, tx, userID, date)
		if err != nil {
			return err
		}

		c, err := ensureChat(ctx, tx, userID, chatID, d.ID)
		if err != nil {
			return err
		}

		last, err := lastMessage(ctx, tx, userID, chatID)
		if err != nil {
			return err
		}

		// Postgres keeps microseconds; never stamp at or before the previous row.
		stamp := s.now().UTC().Truncate(time.Microsecond)
		if !stamp.After(last.CreatedAt) {
			stamp = last.CreatedAt.Add(time.Microsecond)
		}
		rows := []chat.Message{
			toRow(userMsg, userID, chatID, last.Seq+1, stamp),
			toRow(assistantMsg, userID, chatID, last.Seq+2, stamp.Add(time.Microsecond)),
		}
		if err := tx.WithContext(ctx).Create(&rows).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadySaved
			}
			return fmt.Errorf("insert messages: %w", err)
		}

		result = Exchange{Chat: c, UserMessage: rows[0], AssistantMessage: rows[1]}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			s.log.Debug("exchange already stored", "chatID", chatID, "userID", userID)
		}
		return Exchange{}, err
	}
	return result, nil
}

// GetChat returns one chat of the given day with its messages in order.
func (s *Service) GetChat(ctx context.Context, userID, date, chatID string) (chat.Chat, error) {
	if strings.TrimSpace(chatID) == "" {
		return chat.Chat{}, ErrChatIDRequired
	}
	d, err := s.ledger.FindDay(ctx, userID, date)
	if err != nil {
		return chat.Chat{}, err
	}

	var c chat.Chat
	err = s.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND day_id = ?", chatID, userID, d.ID).
		Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return chat.Chat{}, ErrChatNotFound
	}
	if err != nil {
		return chat.Chat{}, fmt.Errorf("find chat: %w", err)
	}

	msgs, err := s.messages(ctx, userID, []string{c.ID})
	if err != nil {
		return chat.Chat{}, err
	}
	c.Messages = msgs[c.ID]
	return c, nil
}

// DayChats returns the day with all of its chats and their messages.
func (s *Service) DayChats(ctx context.Context, userID, date string) (dayModel.Day, error) {
	d, err := s.ledger.FindDay(ctx, userID, date)
	if err != nil {
		return dayModel.Day{}, err
	}

	var chats []chat.Chat
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND day_id = ?", userID, d.ID).
		Order("created_at asc").
		Find(&chats).Error; err != nil {
		return dayModel.Day{}, fmt.Errorf("list chats: %w", err)
	}

	ids := make([]string, 0, len(chats))
	for _, c := range chats {
		ids = append(ids, c.ID)
	}
	msgs, err := s.messages(ctx, userID, ids)
	if err != nil {
		return dayModel.Day{}, err
	}
	for i := range chats {
		chats[i].Messages = msgs[chats[i].ID]
	}
	d.Chats = chats
	return d, nil
}

func (s *Service) messages(ctx context.Context, userID string, chatIDs []string) (map[string][]chat.Message, error) {
	out := make(map[string][]chat.Message, len(chatIDs))
	if len(chatIDs) == 0 {
		return out, nil
	}

	var rows []chat.Message
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND chat_id IN ?", userID, chatIDs).
		Order("seq asc").
		Order("created_at asc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	for _, m := range rows {
		out[m.ChatID] = append(out[m.ChatID], m)
	}
	return out, nil
}

func ensureChat(ctx context.Context, tx *gorm.DB, userID, chatID, dayID string) (chat.Chat, error) {
	row := chat.Chat{ID: chatID, UserID: userID, DayID: dayID, Name: chat.DefaultName}
	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if res.Error != nil && !errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return chat.Chat{}, fmt.Errorf("create chat: %w", res.Error)
	}
	if res.Error == nil && res.RowsAffected == 1 {
		return row, nil
	}

	// The row lock orders concurrent appends to the same chat.
	var existing chat.Chat
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", chatID, userID).
		Take(&existing).Error; err != nil {
		return chat.Chat{}, fmt.Errorf("find chat: %w", err)
	}
	return existing, nil
}

// lastMessage returns the newest message of the chat, or a zero Message.
func lastMessage(ctx context.Context, tx *gorm.DB, userID, chatID string) (chat.Message, error) {
	var last chat.Message
	err := tx.WithContext(ctx).
		Where("user_id = ? AND chat_id = ?", userID, chatID).
		Order("seq desc").
		Order("created_at desc").
		Take(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return chat.Message{}, nil
	}
	if err != nil {
		return chat.Message{}, fmt.Errorf("find last message: %w", err)
	}
	last.CreatedAt = last.CreatedAt.UTC()
	return last, nil
}

// lastExchange picks the trailing (user, assistant) pair.
func lastExchange(messages []chat.UIMessage) (chat.UIMessage, chat.UIMessage, error) {
	if len(messages) == 0 {
		return chat.UIMessage{}, chat.UIMessage{}, ErrMessagesRequired
	}
	if len(messages) < 2 {
		return chat.UIMessage{}, chat.UIMessage{}, ErrIncompleteExchange
	}

	for _, m := range messages {
		if !m.Role.Valid() {
			return chat.UIMessage{}, chat.UIMessage{}, ErrUnknownRole
		}
	}

	userMsg := messages[len(messages)-2]
	assistantMsg := messages[len(messages)-1]
	if userMsg.Role != chat.RoleUser || assistantMsg.Role != chat.RoleAssistant {
		return chat.UIMessage{}, chat.UIMessage{}, ErrIncompleteExchange
	}
	if strings.TrimSpace(userMsg.ID) == "" || strings.TrimSpace(assistantMsg.ID) == "" {
		return chat.UIMessage{}, chat.UIMessage{}, ErrMessageIDRequired
	}
	if userMsg.ID == assistantMsg.ID {
		return chat.UIMessage{}, chat.UIMessage{}, ErrDuplicateMessageID
	}
	return userMsg, assistantMsg, nil
}

func toRow(m chat.UIMessage, userID, chatID string, seq int64, at time.Time) chat.Message {
	parts := datatypes.JSON(m.Parts)
	if len(parts) == 0 {
		parts = datatypes.JSON("[]")
	}
	return chat.Message{
		ID:        m.ID,
		UserID:    userID,
		ChatID:    chatID,
		Seq:       seq,
		Role:      m.Role,
		Parts:     parts,
		CreatedAt: at,
	}
}
