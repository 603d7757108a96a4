package chat_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/campanio/backend/internal/apperr"
	"github.com/campanio/backend/internal/logger"
	chatModel "github.com/campanio/backend/internal/model/chat"
	dayModel "github.com/campanio/backend/internal/model/day"
	chat "github.com/campanio/backend/internal/service/chat"
	"github.com/campanio/backend/internal/service/day"
	"github.com/campanio/backend/internal/store/storetest"
)

func newService(t *testing.T) (*chat.Service, *gorm.DB) {
	t.Helper()
	db := storetest.DB(t)
	return chat.NewService(day.NewLedger(db), logger.Nop()), db
}

func textMsg(id string, role chatModel.Role, text string) chatModel.UIMessage {
	parts, _ := json.Marshal([]chatModel.Part{{Type: "text", Text: text}})
	return chatModel.UIMessage{ID: id, Role: role, Parts: parts}
}

func TestAppendExchangeCreatesDayChatAndMessages(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	messages := []chatModel.UIMessage{
		textMsg("u1", chatModel.RoleUser, "hi"),
		textMsg("a1", chatModel.RoleAssistant, "hello, how are you?"),
	}
	ex, err := svc.AppendExchange(ctx, "user-1", "chat-1", "2025.01.01", messages)
	if err != nil {
		t.Fatalf("AppendExchange err: %v", err)
	}
	if ex.Chat.ID != "chat-1" || ex.Chat.Name != chatModel.DefaultName {
		t.Fatalf("unexpected chat: %+v", ex.Chat)
	}
	if ex.UserMessage.ID != "u1" || ex.AssistantMessage.ID != "a1" {
		t.Fatalf("caller ids must be kept, got %s/%s", ex.UserMessage.ID, ex.AssistantMessage.ID)
	}
	if !ex.AssistantMessage.CreatedAt.After(ex.UserMessage.CreatedAt) {
		t.Fatalf("assistant message must be stamped after the user message")
	}

	if n := storetest.Count(t, db, &dayModel.Day{}, "user_id = ?", "user-1"); n != 1 {
		t.Fatalf("expected one day, got %d", n)
	}
	if n := storetest.Count(t, db, &chatModel.Chat{}, "user_id = ?", "user-1"); n != 1 {
		t.Fatalf("expected one chat, got %d", n)
	}
	if n := storetest.Count(t, db, &chatModel.Message{}, "chat_id = ?", "chat-1"); n != 2 {
		t.Fatalf("expected two messages, got %d", n)
	}
}

func TestAppendExchangeReusesChat(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	first := []chatModel.UIMessage{
		textMsg("u1", chatModel.RoleUser, "hi"),
		textMsg("a1", chatModel.RoleAssistant, "hello"),
	}
	if _, err := svc.AppendExchange(ctx, "user-1", "chat-1", "2025.01.01", first); err != nil {
		t.Fatalf("AppendExchange err: %v", err)
	}
	second := append(first,
		textMsg("u2", chatModel.RoleUser, "tired today"),
		textMsg("a2", chatModel.RoleAssistant, "that sounds hard"),
	)
	if _, err := svc.AppendExchange(ctx, "user-1", "chat-1", "2025.01.01", second); err != nil {
		t.Fatalf("second AppendExchange err: %v", err)
	}

	if n := storetest.Count(t, db, &chatModel.Chat{}, ""); n != 1 {
		t.Fatalf("expected one chat, got %d", n)
	}

	got, err := svc.GetChat(ctx, "user-1", "2025.01.01", "chat-1")
	if err != nil {
		t.Fatalf("GetChat err: %v", err)
	}
	ids := make([]string, 0, len(got.Messages))
	for _, m := range got.Messages {
		ids = append(ids, m.ID)
	}
	want := []string{"u1", "a1", "u2", "a2"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
}

func TestAppendExchangeKeepsOrderWithFrozenClock(t *testing.T) {
	db := storetest.DB(t)
	frozen := time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC)
	svc := chat.NewService(day.NewLedger(db), logger.Nop(), chat.WithClock(func() time.Time { return frozen }))
	ctx := context.Background()

	history := []chatModel.UIMessage{
		textMsg("u1", chatModel.RoleUser, "hi"),
		textMsg("a1", chatModel.RoleAssistant, "hello"),
	}
	if _, err := svc.AppendExchange(ctx, "user-1", "chat-1", "2025.01.01", history); err != nil {
		t.Fatalf("first AppendExchange err: %v", err)
	}
	history = append(history,
		textMsg("u2", chatModel.RoleUser, "could not sleep"),
		textMsg("a2", chatModel.RoleAssistant, "what kept you up?"),
	)
	if _, err := svc.AppendExchange(ctx, "user-1", "chat-1", "2025.01.01", history); err != nil {
		t.Fatalf("second AppendExchange err: %v", err)
	}

	got, err := svc.GetChat(ctx, "user-1", "2025.01.01", "chat-1")
	if err != nil {
		t.Fatalf("GetChat err: %v", err)
	}
	want := []string{"u1", "a1", "u2", "a2"}
	if len(got.Messages) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got.Messages))
	}
	for i, m := range got.Messages {
		if m.ID != want[i] {
			t.Fatalf("message %d: expected %s, got %s", i, want[i], m.ID)
		}
		if m.Seq != int64(i+1) {
			t.Fatalf("message %s: expected seq %d, got %d", m.ID, i+1, m.Seq)
		}
		if i > 0 && !m.CreatedAt.After(got.Messages[i-1].CreatedAt) {
			t.Fatalf("message %s is not stamped after %s", m.ID, got.Messages[i-1].ID)
		}
	}
}

func TestConcurrentAppendsToOneChat(t *testing.T) {
	db := storetest.FileDB(t)
	svc := chat.NewService(day.NewLedger(db), logger.Nop())
	ctx := context.Background()

	const writers = 6
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pair := []chatModel.UIMessage{
				textMsg(fmt.Sprintf("u%d", i), chatModel.RoleUser, "hi"),
				textMsg(fmt.Sprintf("a%d", i), chatModel.RoleAssistant, "hello"),
			}
			if _, err := svc.AppendExchange(ctx, "user-1", "chat-1", "2025.01.01", pair); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent AppendExchange err: %v", err)
	}

	if n := storetest.Count(t, db, &dayModel.Day{}, ""); n != 1 {
		t.Fatalf("expected one day, got %d", n)
	}
	if n := storetest.Count(t, db, &chatModel.Chat{}, ""); n != 1 {
		t.Fatalf("expected one chat, got %d", n)
	}

	got, err := svc.GetChat(ctx, "user-1", "2025.01.01", "chat-1")
	if err != nil {
		t.Fatalf("GetChat err: %v", err)
	}
	if len(got.Messages) != 2*writers {
		t.Fatalf("expected %d messages, got %d", 2*writers, len(got.Messages))
	}
	for i := 0; i < len(got.Messages); i += 2 {
		u, a := got.Messages[i], got.Messages[i+1]
		if u.Seq != int64(i+1) || a.Seq != int64(i+2) {
			t.Fatalf("unexpected seqs %d/%d at %d", u.Seq, a.Seq, i)
		}
		if u.Role != chatModel.RoleUser || a.Role != chatModel.RoleAssistant || u.ID[1:] != a.ID[1:] {
			t.Fatalf("exchange split at %d: %s then %s", i, u.ID, a.ID)
		}
	}
}

func TestConcurrentDuplicateAppendStoresOnce(t *testing.T) {
	db := storetest.FileDB(t)
	svc := chat.NewService(day.NewLedger(db), logger.Nop())
	ctx := context.Background()
	pair := []chatModel.UIMessage{
		textMsg("u1", chatModel.RoleUser, "hi"),
		textMsg("a1", chatModel.RoleAssistant, "hello"),
	}

	const writers = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		saved     int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AppendExchange(ctx, "user-1", "chat-1", "2025.01.01", pair)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				saved++
			case errors.Is(err, chat.ErrAlreadySaved):
				conflicts++
			default:
				t.Errorf("unexpected err: %v", err)
			}
		}()
	}
	wg.Wait()

	if saved != 1 || conflicts != writers-1 {
		t.Fatalf("expected one save and %d conflicts, got %d/%d", writers-1, saved, conflicts)
	}
	if n := storetest.Count(t, db, &chatModel.Message{}, ""); n != 2 {
		t.Fatalf("expected two messages, got %d", n)
	}
}

func TestAppendExchangeRejectsMalformedTail(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	cases := map[string]struct {
		messages []chatModel.UIMessage
		want     error
	}{
		"empty": {want: chat.ErrMessagesRequired},
		"single user message": {
			messages: []chatModel.UIMessage{textMsg("u1", chatModel.RoleUser, "hi")},
			want:     chat.ErrIncompleteExchange,
		},
		"assistant only": {
			messages: []chatModel.UIMessage{
				textMsg("a0", chatModel.RoleAssistant, "welcome"),
				textMsg("a1", chatModel.RoleAssistant, "still here"),
			},
			want: chat.ErrIncompleteExchange,
		},
		"ends with user": {
			messages: []chatModel.UIMessage{
				textMsg("a0", chatModel.RoleAssistant, "welcome"),
				textMsg("u1", chatModel.RoleUser, "hi"),
			},
			want: chat.ErrIncompleteExchange,
		},
		"unknown role": {
			messages: []chatModel.UIMessage{
				textMsg("t0", chatModel.Role("tool"), "lookup"),
				textMsg("u1", chatModel.RoleUser, "hi"),
				textMsg("a1", chatModel.RoleAssistant, "hello"),
			},
			want: chat.ErrUnknownRole,
		},
		"missing id": {
			messages: []chatModel.UIMessage{
				textMsg("", chatModel.RoleUser, "hi"),
				textMsg("a1", chatModel.RoleAssistant, "hello"),
			},
			want: chat.ErrMessageIDRequired,
		},
		"same ids": {
			messages: []chatModel.UIMessage{
				textMsg("m1", chatModel.RoleUser, "hi"),
				textMsg("m1", chatModel.RoleAssistant, "hello"),
			},
			want: chat.ErrDuplicateMessageID,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.AppendExchange(ctx, "user-1", "chat-1", "2025.01.01", tc.messages)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if n := storetest.Count(t, db, &dayModel.Day{}, ""); n != 0 {
		t.Fatalf("rejected exchanges must not create days, got %d", n)
	}
}

func TestAppendExchangeRequiresIdentifiers(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	pair := []chatModel.UIMessage{
		textMsg("u1", chatModel.RoleUser, "hi"),
		textMsg("a1", chatModel.RoleAssistant, "hello"),
	}

	if _, err := svc.AppendExchange(ctx, "", "chat-1", "2025.01.01", pair); apperr.KindOf(err) != apperr.KindUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if _, err := svc.AppendExchange(ctx, "user-1", " ", "2025.01.01", pair); !errors.Is(err, chat.ErrChatIDRequired) {
		t.Fatalf("expected chat id required, got %v", err)
	}
	if _, err := svc.AppendExchange(ctx, "user-1", "chat-1", "", pair); !errors.Is(err, day.ErrDateRequired) {
		t.Fatalf("expected date required, got %v", err)
	}
}

func TestAppendExchangeDuplicateIsConflict(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	pair := []chatModel.UIMessage{
		textMsg("u1", chatModel.RoleUser, "hi"),
		textMsg("a1", chatModel.RoleAssistant, "hello"),
	}

	if _, err := svc.AppendExchange(ctx, "user-1", "chat-1", "2025.01.01", pair); err != nil {
		t.Fatalf("AppendExchange err: %v", err)
	}
	_, err := svc.AppendExchange(ctx, "user-1", "chat-1", "2025.01.01", pair)
	if !errors.Is(err, chat.ErrAlreadySaved) {
		t.Fatalf("expected already saved, got %v", err)
	}
	if n := storetest.Count(t, db, &chatModel.Message{}, ""); n != 2 {
		t.Fatalf("expected two messages after retry, got %d", n)
	}
}

func TestChatIDsAreScopedPerUser(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	pair := []chatModel.UIMessage{
		textMsg("u1", chatModel.RoleUser, "hi"),
		textMsg("a1", chatModel.RoleAssistant, "hello"),
	}

	for _, user := range []string{"user-1", "user-2"} {
		if _, err := svc.AppendExchange(ctx, user, "chat-1", "2025.01.01", pair); err != nil {
			t.Fatalf("AppendExchange(%s) err: %v", user, err)
		}
	}
	if n := storetest.Count(t, db, &chatModel.Chat{}, "id = ?", "chat-1"); n != 2 {
		t.Fatalf("expected a chat per user, got %d", n)
	}

	if _, err := svc.GetChat(ctx, "user-3", "2025.01.01", "chat-1"); !errors.Is(err, day.ErrDayNotFound) {
		t.Fatalf("a stranger must not see the chat, got %v", err)
	}
}

func TestGetChatNotFound(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	pair := []chatModel.UIMessage{
		textMsg("u1", chatModel.RoleUser, "hi"),
		textMsg("a1", chatModel.RoleAssistant, "hello"),
	}
	if _, err := svc.AppendExchange(ctx, "user-1", "chat-1", "2025.01.01", pair); err != nil {
		t.Fatalf("AppendExchange err: %v", err)
	}

	if _, err := svc.GetChat(ctx, "user-1", "2025.01.01", "chat-x"); !errors.Is(err, chat.ErrChatNotFound) {
		t.Fatalf("expected chat not found, got %v", err)
	}
	if _, err := svc.GetChat(ctx, "user-1", "2025.01.02", "chat-1"); !errors.Is(err, day.ErrDayNotFound) {
		t.Fatalf("expected day not found, got %v", err)
	}
}

func TestDayChats(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for i, id := range []string{"chat-a", "chat-b"} {
		pair := []chatModel.UIMessage{
			textMsg(id+"-u", chatModel.RoleUser, "hi"),
			textMsg(id+"-a", chatModel.RoleAssistant, "hello"),
		}
		if _, err := svc.AppendExchange(ctx, "user-1", id, "2025.01.01", pair); err != nil {
			t.Fatalf("AppendExchange #%d err: %v", i, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	d, err := svc.DayChats(ctx, "user-1", "2025.01.01")
	if err != nil {
		t.Fatalf("DayChats err: %v", err)
	}
	if len(d.Chats) != 2 {
		t.Fatalf("expected two chats, got %d", len(d.Chats))
	}
	if d.Chats[0].ID != "chat-a" || d.Chats[1].ID != "chat-b" {
		t.Fatalf("chats out of order: %s, %s", d.Chats[0].ID, d.Chats[1].ID)
	}
	for _, c := range d.Chats {
		if len(c.Messages) != 2 || c.Messages[0].Role != chatModel.RoleUser {
			t.Fatalf("unexpected messages for %s: %+v", c.ID, c.Messages)
		}
	}

	if _, err := svc.DayChats(ctx, "user-1", "2030.01.01"); !errors.Is(err, day.ErrDayNotFound) {
		t.Fatalf("expected day not found, got %v", err)
	}
}
