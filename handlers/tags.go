package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/virajlab/nautifier/internal/event"
	"github.com/virajlab/nautifier/llm"
)

const tagsSystemPrompt = `You are Nautifier, an experienced analytics engineer added as a helper bot in an analytics tag management Slack channel.
Your role is to assist with various kinds of messages, such as queries, specific questions, calls for help, suggestions,
tutorial/documentation links, and other analytics-related discussions.

Your objectives are:
1. **Categorize messages** based on their context (e.g., informational, help request, question, or suggestion).
2. **Respond appropriately**:
   - **Informational messages**: Add your thoughts or provide insights where relevant.
   - **Long messages**: Summarize concisely.
   - **Questions or help requests**: Provide precise answers. If unsure, acknowledge your limitations and suggest next steps.
   - **Ambiguous messages**: Ask clarifying questions to help the user and the team elaborate.

You acknowledge that this is a skilled team, and sometimes helping a user think aloud by asking the right questions can benefit everyone.
You are transparent about your limitations and admit when you might make mistakes.

Your responses are very brief, crisp, precise, and structured. You communicate like a professional on Stack Overflow:
- Offer clear insights and counterpoints.
- Provide alternative solutions or approaches.
- Seek further context where necessary, always with a respectful and constructive tone.

Your primary focus is to assist effectively and encourage collaborative problem-solving within the team.`

const (
	tagsEmptyReply = "Sorry, I couldn't generate a response."
	tagsErrorReply = "Sorry, there was an error generating a response."
)

// TagsHandler answers analytics tag-management questions in-thread with a
// plain-text reply. The whole thread is sent as context, one "Name: text"
// line per message.
type TagsHandler struct {
	llm   llm.Client
	slack Slack
	model string
	log   *slog.Logger
}

type TagsOptions struct {
	LLM    llm.Client
	Slack  Slack
	Model  string
	Logger *slog.Logger
}

func NewTagsHandler(opts TagsOptions) (*TagsHandler, error) {
	if opts.LLM == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if opts.Slack == nil {
		return nil, fmt.Errorf("slack client is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-2.5-flash-preview-05-20"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TagsHandler{
		llm:   opts.LLM,
		slack: opts.Slack,
		model: model,
		log:   logger,
	}, nil
}

func (h *TagsHandler) Name() string { return "tags" }

func (h *TagsHandler) Handle(ctx context.Context, ev *event.Event) error {
	channel := ev.Channel()
	threadTS := ev.ThreadTS()
	text := event.CleanText(ev.Text())
	if channel == "" || threadTS == "" || strings.TrimSpace(text) == "" {
		h.log.Warn("tags_missing_fields", "channel", channel, "ts", threadTS)
		return nil
	}

	userName := h.slack.UserName(ctx, ev.UserID())
	history, err := h.slack.ThreadHistory(ctx, channel, threadTS, ev.TS())
	if err != nil {
		h.log.Warn("tags_thread_history_failed", "error", err, "channel", channel)
	}
	history = append(history, fmt.Sprintf("%s: %s", userName, text))
	prompt := strings.TrimSpace(strings.Join(history, "\n"))

	resp, err := h.llm.Chat(ctx, llm.Request{
		Model:           h.model,
		System:          tagsSystemPrompt,
		Messages:        []llm.Message{{Role: "user", Content: prompt}},
		Temperature:     1.0,
		TopP:            0.95,
		TopK:            64,
		MaxOutputTokens: 2048,
	})
	if err != nil {
		h.log.Error("tags_llm_failed", "error", err, "channel", channel)
		return h.slack.PostMessage(ctx, channel, tagsErrorReply, threadTS)
	}

	reply := strings.TrimSpace(resp.Text)
	if reply == "" {
		reply = tagsEmptyReply
	}
	return h.slack.PostMessage(ctx, channel, reply, threadTS)
}
