package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/virajlab/nautifier/internal/event"
	"github.com/virajlab/nautifier/llm"
)

const chatterSystemPrompt = `You are Nautifier, a fun Slack bot in the 'chattar-pattar' informal chats channel. When tagged (@Nautifier), respond with a playful, casual tone based on the thread context. Use the thread history to understand what's been said by users and your previous replies. Keep responses short, witty, and relevant. If unsure, make a lighthearted guess or ask a fun follow-up question.`

const (
	chatterEmptyReply = "Oops, I've run out of ideas! Throw me another one!"
	chatterErrorReply = "Yikes, something went wrong! Let's try that again later!"
)

type ChatterHandler struct {
	llm   llm.Client
	slack Slack
	model string
	now   func() time.Time
	loc   *time.Location
	log   *slog.Logger
}

type ChatterOptions struct {
	LLM    llm.Client
	Slack  Slack
	Model  string
	Now    func() time.Time
	Logger *slog.Logger
}

func NewChatterHandler(opts ChatterOptions) (*ChatterHandler, error) {
	if opts.LLM == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if opts.Slack == nil {
		return nil, fmt.Errorf("slack client is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-2.0-flash-lite"
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := loadLocation()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	return &ChatterHandler{
		llm:   opts.LLM,
		slack: opts.Slack,
		model: model,
		now:   now,
		loc:   loc,
		log:   logger,
	}, nil
}

func (h *ChatterHandler) Name() string { return "chatter" }

func (h *ChatterHandler) Handle(ctx context.Context, ev *event.Event) error {
	channel := ev.Channel()
	threadTS := ev.ThreadTS()
	text := event.CleanText(ev.Text())
	if channel == "" || threadTS == "" || strings.TrimSpace(text) == "" {
		h.log.Warn("chatter_missing_fields", "channel", channel, "ts", threadTS)
		return nil
	}

	today := h.now().In(h.loc).Format(dateLayout)
	userName := h.slack.UserName(ctx, ev.UserID())

	history, err := h.slack.ThreadHistory(ctx, channel, threadTS, ev.TS())
	if err != nil {
		h.log.Warn("chatter_thread_history_failed", "error", err, "channel", channel)
	}
	history = append(history, fmt.Sprintf("%s: %s", userName, text))

	var sb strings.Builder
	for i, line := range history {
		fmt.Fprintf(&sb, "Message %d: %s\n", i+1, line)
	}
	prompt := fmt.Sprintf("Today's date is %s. Respond to this thread:\n%s", today, strings.TrimRight(sb.String(), "\n"))

	resp, err := h.llm.Chat(ctx, llm.Request{
		Model:           h.model,
		System:          chatterSystemPrompt,
		Messages:        []llm.Message{{Role: "user", Content: prompt}},
		Temperature:     1.0,
		TopP:            0.95,
		TopK:            64,
		MaxOutputTokens: 256,
	})
	if err != nil {
		h.log.Error("chatter_llm_failed", "error", err, "channel", channel)
		return h.slack.PostMessage(ctx, channel, chatterErrorReply, threadTS)
	}

	reply := strings.TrimSpace(resp.Text)
	if reply == "" {
		reply = chatterEmptyReply
	}
	return h.slack.PostMessage(ctx, channel, reply, threadTS)
}
