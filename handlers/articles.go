package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/virajlab/nautifier/internal/event"
	"github.com/virajlab/nautifier/llm"
	"github.com/virajlab/nautifier/tools"
)

const articlesSystemPrompt = `You are Nautifier, a Slack bot added to a channel where team members share useful articles for a weekly industry newsletter related to Analytics.

If someone shares a link and says anything that indicates it's valuable (e.g., "important", "useful", "bookmark this", "newsletter-worthy"), assume they want it saved.

Also, if someone replies in a thread with a message asking you to save something, assume it refers to the earlier shared article in that thread.

Use the ` + "`save_article_to_sheet`" + ` function to log the article with:
- URL
- Tags (either mentioned or inferred). Infer the topics the article is about and use as tags.
- Name of the user who submitted it
- Current date in DD/MM/YYYY format

If the message is ambiguous, but clearly includes a link and positive sentiment, err on the side of saving it.`

const (
	articlesFallbackReply = "Failed to process article saving request."
	articlesSaveFailed    = "Failed to save the article to the sheet."
	articlesNoCall        = "No function was called."
)

type ArticlesHandler struct {
	llm      llm.Client
	slack    Slack
	registry *tools.Registry
	model    string
	now      func() time.Time
	loc      *time.Location
	log      *slog.Logger
}

type ArticlesOptions struct {
	LLM      llm.Client
	Slack    Slack
	Registry *tools.Registry
	Model    string
	Now      func() time.Time
	Logger   *slog.Logger
}

func NewArticlesHandler(opts ArticlesOptions) (*ArticlesHandler, error) {
	if opts.LLM == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if opts.Slack == nil {
		return nil, fmt.Errorf("slack client is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-1.5-flash"
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
	return &ArticlesHandler{
		llm:      opts.LLM,
		slack:    opts.Slack,
		registry: opts.Registry,
		model:    model,
		now:      now,
		loc:      loc,
		log:      logger,
	}, nil
}

func (h *ArticlesHandler) Name() string { return "articles" }

func (h *ArticlesHandler) Handle(ctx context.Context, ev *event.Event) error {
	channel := ev.Channel()
	text := event.CleanText(ev.Text())
	today := h.now().In(h.loc).Format(dateLayout)
	userName := h.slack.UserName(ctx, ev.UserID())

	var prompt string
	if threadTS := ev.ThreadTS(); threadTS != ev.TS() {
		// Thread replies carry the parent conversation as context so
		// "save this" can refer to an earlier link.
		history, err := h.slack.ThreadHistory(ctx, channel, threadTS, ev.TS())
		if err != nil {
			h.log.Warn("articles_thread_history_failed", "error", err, "channel", channel)
		}
		prompt = fmt.Sprintf("Today's date is %s. The following thread is the context:\n%s\n%s replied: %s",
			today, strings.Join(history, "\n"), userName, text)
	} else {
		prompt = fmt.Sprintf("Today's date is %s. This message is from %s: %s", today, userName, text)
	}

	resp, err := h.llm.Chat(ctx, llm.Request{
		Model:    h.model,
		System:   articlesSystemPrompt,
		Messages: []llm.Message{{Role: "user", Content: prompt}},
		Tools:    h.registry.Declarations(),
	})
	if err != nil {
		h.log.Error("articles_llm_failed", "error", err, "channel", channel)
		return h.slack.PostMessage(ctx, channel, articlesFallbackReply, ev.TS())
	}

	reply := articlesNoCall
	if len(resp.ToolCalls) > 0 {
		reply = h.executeCall(ctx, resp.ToolCalls[0])
	}
	return h.slack.PostMessage(ctx, channel, reply, ev.TS())
}

func (h *ArticlesHandler) executeCall(ctx context.Context, call llm.ToolCall) string {
	tool, ok := h.registry.Get(call.Name)
	if !ok {
		h.log.Warn("articles_unknown_tool", "tool", call.Name)
		return articlesFallbackReply
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(call.RawArguments), &params); err != nil {
		h.log.Warn("articles_bad_tool_args", "tool", call.Name, "error", err)
		return articlesFallbackReply
	}
	out, err := tool.Execute(ctx, params)
	if err != nil {
		h.log.Error("articles_tool_failed", "tool", call.Name, "error", err)
		return articlesSaveFailed
	}
	var result struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(out), &result); err == nil && strings.TrimSpace(result.Message) != "" {
		return result.Message
	}
	return "✅ Processed."
}
