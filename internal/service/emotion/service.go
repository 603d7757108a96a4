package emotion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/campanio/backend/internal/analysis/mood"
	"github.com/campanio/backend/internal/logger"
	catalog "github.com/campanio/backend/internal/model/mood"
)

const defaultTimeout = 10 * time.Second

// Config 控制情绪分析服务的行为。Timeout 为 0 时使用默认值。
type Config struct {
	Enabled bool
	Timeout time.Duration
}

// Suggestion is the mood inferred for a piece of journal text.
type Suggestion struct {
	Mood       string  `json:"mood"`
	Confidence float32 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
	Source     string  `json:"source"`
}

// Service 使用大模型推断日记文本的情绪，并在必要时回退到关键词规则。
type Service struct {
	enabled    bool
	timeout    time.Duration
	classifier compose.Runnable[map[string]any, *schema.Message]
	fallback   func(text string) mood.Decision
	log        *logger.Logger
}

// NewService 创建情绪分析服务。chatModel 可为 nil，此时只使用关键词规则。
func NewService(ctx context.Context, chatModel model.ChatModel, cfg Config, log *logger.Logger) (*Service, error) {
	svc := &Service{
		enabled:  cfg.Enabled && chatModel != nil,
		timeout:  cfg.Timeout,
		fallback: mood.Analyze,
		log:      log.With("service", "EmotionService"),
	}

	if svc.timeout <= 0 {
		svc.timeout = defaultTimeout
	}
	if !svc.enabled {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{text}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile mood classifier chain: %w", err)
	}

	svc.classifier = runnable
	return svc, nil
}

// Enabled 返回是否使用大模型分类。
func (s *Service) Enabled() bool {
	return s != nil && s.enabled && s.classifier != nil
}

// Suggest infers a catalog mood for text. It never fails: any classifier
// problem degrades to keyword analysis.
func (s *Service) Suggest(ctx context.Context, text string) Suggestion {
	text = strings.TrimSpace(text)
	if !s.Enabled() || text == "" {
		return s.fallbackSuggestion(text)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	msg, err := s.classifier.Invoke(ctx, map[string]any{
		"system": classifierSystemPrompt(),
		"text":   text,
	})
	if err != nil {
		s.log.Warn("mood classifier invoke failed, using fallback", "error", err)
		return s.fallbackSuggestion(text)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return s.fallbackSuggestion(text)
	}

	result, err := parseClassifierOutput(msg.Content)
	if err != nil {
		s.log.Warn("mood classifier output parse failed, using fallback", "error", err)
		return s.fallbackSuggestion(text)
	}

	id, ok := catalog.Normalize(result.Mood)
	if !ok {
		return s.fallbackSuggestion(text)
	}

	confidence := result.Confidence
	if confidence <= 0 {
		confidence = 0.6
	}
	if confidence > 1 {
		confidence = 1
	}

	return Suggestion{
		Mood:       id,
		Confidence: confidence,
		Reason:     strings.TrimSpace(result.Reason),
		Source:     "model",
	}
}

func (s *Service) fallbackSuggestion(text string) Suggestion {
	decision := s.fallback(text)
	confidence := float32(0.3)
	if decision.Score > 0 {
		confidence = 0.55
	}
	return Suggestion{
		Mood:       decision.Mood,
		Confidence: confidence,
		Source:     "keywords",
	}
}

// parseClassifierOutput 解析大模型返回的 JSON。
func parseClassifierOutput(content string) (*classifierPayload, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("missing json object")
	}

	payload := &classifierPayload{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return nil, err
	}
	return payload, nil
}

type classifierPayload struct {
	Mood       string  `json:"mood"`
	Confidence float32 `json:"confidence"`
	Reason     string  `json:"reason"`
}

func classifierSystemPrompt() string {
	ids := make([]string, 0, 8)
	for _, m := range catalog.Catalog() {
		ids = append(ids, m.ID)
	}
	return "You read a short personal journal entry and infer the writer's overall mood. " +
		"Reply with a single JSON object only, with the fields: mood (one of " + strings.Join(ids, "/") +
		"), confidence (a number between 0 and 1) and reason (one short sentence). Do not output anything else."
}
