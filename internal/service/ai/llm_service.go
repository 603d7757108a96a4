package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/campanio/backend/internal/apperr"
	"github.com/campanio/backend/internal/config"
	"github.com/campanio/backend/internal/logger"
	"github.com/campanio/backend/internal/model/chat"
)

const (
	historyLimit             = 20
	defaultReflectionTimeout = 30 * time.Second
	defaultChatTimeout       = 30 * time.Second
)

var (
	ErrNoUserMessage    = apperr.Validation("messages must end with a user message")
	ErrReflectionFailed = apperr.External("reflection generation failed", nil)
	ErrReplyFailed      = apperr.External("companion reply failed", nil)
)

// Service encapsulates AI-powered chat and journaling functionality.
type Service struct {
	chatModel         model.ChatModel
	companion         compose.Runnable[map[string]any, *schema.Message]
	reflection        compose.Runnable[map[string]any, *schema.Message]
	reflectionTimeout time.Duration
	chatTimeout       time.Duration
	log               *logger.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithChatTimeout bounds every companion reply, streamed or not. Values <= 0
// keep the default.
func WithChatTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.chatTimeout = d
		}
	}
}

// NewService creates the hosted chat model from cfg and builds the chains on top of it.
func NewService(ctx context.Context, cfg config.AIConfig, reflectionTimeout time.Duration, log *logger.Logger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, reflectionTimeout, log, WithChatTimeout(cfg.ChatTimeout))
}

// NewServiceWithModel builds the companion and reflection chains on an existing model.
func NewServiceWithModel(ctx context.Context, chatModel model.ChatModel, reflectionTimeout time.Duration, log *logger.Logger, opts ...Option) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if reflectionTimeout <= 0 {
		reflectionTimeout = defaultReflectionTimeout
	}

	companion, err := compileChain(ctx, chatModel, prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", false),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to compile companion chain: %w", err)
	}

	reflection, err := compileChain(ctx, chatModel, prompt.FromMessages(
		schema.FString,
		schema.UserMessage("{prompt}"),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to compile reflection chain: %w", err)
	}

	svc := &Service{
		chatModel:         chatModel,
		companion:         companion,
		reflection:        reflection,
		reflectionTimeout: reflectionTimeout,
		chatTimeout:       defaultChatTimeout,
		log:               log.With("service", "AIService"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

func compileChain(ctx context.Context, chatModel model.ChatModel, tmpl prompt.ChatTemplate) (compose.Runnable[map[string]any, *schema.Message], error) {
	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(tmpl)
	chain.AppendChatModel(chatModel)
	return chain.Compile(ctx)
}

// GetChatModel 返回底层的聊天模型
func (s *Service) GetChatModel() model.ChatModel {
	return s.chatModel
}

// GenerateReflection asks the model for a reflection on journal. The call is
// bounded by the reflection timeout; any failure is an external-service error.
func (s *Service) GenerateReflection(ctx context.Context, journal string, edited bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.reflectionTimeout)
	defer cancel()

	response, err := s.reflection.Invoke(ctx, map[string]any{
		"prompt": BuildReflectionPrompt(journal, edited),
	})
	if err != nil {
		s.log.Warn("reflection generation failed", "error", err, "edited", edited)
		return "", ErrReflectionFailed.Wrap(err)
	}

	text := ""
	if response != nil {
		text = strings.TrimSpace(response.Content)
	}
	if text == "" {
		return "", ErrReflectionFailed.Wrap(errors.New("empty completion"))
	}

	s.log.Debug("generated reflection", "length", len(text), "edited", edited)
	return text, nil
}

// StreamReply streams the companion's answer to the conversation in messages.
// The whole stream, not only its first chunk, must finish within the chat
// timeout; after that Recv reports the deadline.
func (s *Service) StreamReply(ctx context.Context, messages []chat.UIMessage, todayMood string) (*schema.StreamReader[*schema.Message], error) {
	input, err := s.buildChainInput(messages, todayMood)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.chatTimeout)
	stream, err := s.companion.Stream(ctx, input)
	if err != nil {
		cancel()
		s.log.Warn("companion stream failed to start", "error", err)
		return nil, ErrReplyFailed.Wrap(err)
	}

	out, w := schema.Pipe[*schema.Message](4)
	go func() {
		defer cancel()
		defer stream.Close()
		defer w.Close()
		for {
			chunk, recvErr := stream.Recv()
			if errors.Is(recvErr, io.EOF) {
				return
			}
			if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(recvErr, ctxErr) {
				if recvErr == nil {
					recvErr = ctxErr
				} else {
					recvErr = fmt.Errorf("%w: %v", ctxErr, recvErr)
				}
			}
			if recvErr != nil {
				w.Send(nil, recvErr)
				return
			}
			if closed := w.Send(chunk, nil); closed {
				return
			}
		}
	}()
	return out, nil
}

// GenerateReply returns the complete companion answer in one call, for
// clients that cannot consume a stream.
func (s *Service) GenerateReply(ctx context.Context, messages []chat.UIMessage, todayMood string) (*schema.Message, error) {
	input, err := s.buildChainInput(messages, todayMood)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.chatTimeout)
	defer cancel()

	response, err := s.companion.Invoke(ctx, input)
	if err != nil {
		s.log.Warn("companion reply failed", "error", err)
		return nil, ErrReplyFailed.Wrap(err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return nil, ErrReplyFailed.Wrap(errors.New("empty completion"))
	}
	return response, nil
}

// Collect drains stream, calling onDelta for every non-empty chunk, and returns
// the concatenated message.
func Collect(stream *schema.StreamReader[*schema.Message], onDelta func(string)) (*schema.Message, error) {
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return nil, ErrReplyFailed.Wrap(recvErr)
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" && onDelta != nil {
			onDelta(chunk.Content)
		}
	}

	if len(chunks) == 0 {
		return nil, ErrReplyFailed.Wrap(errors.New("empty completion"))
	}

	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, ErrReplyFailed.Wrap(err)
	}
	return response, nil
}

func (s *Service) buildChainInput(messages []chat.UIMessage, todayMood string) (map[string]any, error) {
	history := buildHistoryMessages(messages)
	if len(history) == 0 || history[len(history)-1].Role != schema.User {
		return nil, ErrNoUserMessage
	}

	return map[string]any{
		"system":  BuildCompanionPrompt(todayMood),
		"history": history,
	}, nil
}

// buildHistoryMessages converts client messages for the model. Client-supplied
// system messages are dropped; the server owns the system prompt.
func buildHistoryMessages(messages []chat.UIMessage) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > historyLimit {
		startIdx = len(messages) - historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		text := strings.TrimSpace(msg.Text())
		if text == "" {
			continue
		}
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(text))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(text, nil))
		}
	}

	return history
}
