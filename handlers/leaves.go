package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/virajlab/nautifier/internal/event"
	"github.com/virajlab/nautifier/internal/jsonutil"
	"github.com/virajlab/nautifier/llm"
)

const leavesSystemPrompt = `You are Nautifier, a Slack bot added in the leaves channel where people announce their leaves.
Messages could be for sick leave, casual leave, festive leaves, half days, etc.
The information you extract will be used to **automatically fill up leave forms**.

Your job is to extract and return the following:
1. **leave_type**: (casual, sick, half-day, festive). If someone is sick but requests a half-day, mark it as *sick*.
2. **from_date & to_date**: Extract leave dates in ` + "`DD/MM/YYYY`" + ` format. If no dates are mentioned, assume today's date.
3. **num_days**: Calculate the number of leave days.
4. **reply**: Generate an **appropriate, professional message** acknowledging the leave.
5. **reason_stated**: Reason stated by user for the leave.
6. **cancel**: Set to true only when the user is cancelling a previously announced leave. Use the dates of the leave being cancelled.

### Output Format:
- Return an **array of JSON objects**.
- The first element is ` + "`\"reply\"`" + ` followed by **structured leave details**.
- Example output:
` + "```json" + `
[
    "Noted. Wishing you a speedy recovery!",
    { "leave_type": "sick", "from_date": "10/02/2025", "to_date": "10/02/2025", "num_days": 1, "reason_stated": "Feeling nauseous" }
]
` + "```" + `
If no leave is mentioned, respond: 'I cannot determine if a leave form fill-up is required.'`

const leavesFallbackReply = "I couldn't process the leave request."

// LeavesStore is the slice of the sheet store the leaves handler needs.
type LeavesStore interface {
	Today() string
	AppendRow(ctx context.Context, sheetName string, row []any) error
	DeleteLeaveRow(ctx context.Context, sheetName, employee, fromDate, toDate string) (bool, string, error)
}

type leaveEntry struct {
	LeaveType    string      `json:"leave_type"`
	FromDate     string      `json:"from_date"`
	ToDate       string      `json:"to_date"`
	NumDays      json.Number `json:"num_days"`
	ReasonStated string      `json:"reason_stated"`
	Cancel       bool        `json:"cancel"`
}

type LeavesHandler struct {
	llm       llm.Client
	slack     Slack
	store     LeavesStore
	sheetName string
	model     string
	now       func() time.Time
	loc       *time.Location
	log       *slog.Logger
}

type LeavesOptions struct {
	LLM       llm.Client
	Slack     Slack
	Store     LeavesStore
	SheetName string
	Model     string
	Now       func() time.Time
	Logger    *slog.Logger
}

func NewLeavesHandler(opts LeavesOptions) (*LeavesHandler, error) {
	if opts.LLM == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if opts.Slack == nil {
		return nil, fmt.Errorf("slack client is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("leaves store is required")
	}
	sheetName := strings.TrimSpace(opts.SheetName)
	if sheetName == "" {
		sheetName = "Leaves"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-2.5-pro-exp-03-25"
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
	return &LeavesHandler{
		llm:       opts.LLM,
		slack:     opts.Slack,
		store:     opts.Store,
		sheetName: sheetName,
		model:     model,
		now:       now,
		loc:       loc,
		log:       logger,
	}, nil
}

func (h *LeavesHandler) Name() string { return "leaves" }

func (h *LeavesHandler) Handle(ctx context.Context, ev *event.Event) error {
	channel := ev.Channel()
	threadTS := ev.TS()
	today := h.now().In(h.loc).Format(dateLayout)
	userName := h.slack.UserName(ctx, ev.UserID())

	prompt := fmt.Sprintf("Today's date is %s. Use this when required.\nUser's message: %s",
		today, event.CleanText(ev.Text()))

	resp, err := h.llm.Chat(ctx, llm.Request{
		Model:           h.model,
		System:          leavesSystemPrompt,
		Messages:        []llm.Message{{Role: "user", Content: prompt}},
		Temperature:     1.2,
		TopP:            0.95,
		TopK:            64,
		MaxOutputTokens: 2048,
	})
	if err != nil {
		h.log.Error("leaves_llm_failed", "error", err, "channel", channel)
		return h.slack.PostMessage(ctx, channel, leavesFallbackReply, threadTS)
	}

	reply, entries, err := decodeLeaveResponse(resp.Text)
	if err != nil {
		h.log.Warn("leaves_decode_failed", "error", err, "channel", channel)
		return h.slack.PostMessage(ctx, channel, leavesFallbackReply, threadTS)
	}

	message := reply
	if len(entries) > 0 {
		message += "\n\n ***Leave Details:***\n"
	}
	for _, leave := range entries {
		if leave.Cancel {
			_, result, err := h.store.DeleteLeaveRow(ctx, h.sheetName, userName, leave.FromDate, leave.ToDate)
			if err != nil {
				h.log.Error("leaves_cancel_failed", "error", err, "employee", userName)
				result = "Error cancelling leave, please try again."
			}
			message += result + "\n---\n\n"
			continue
		}
		reason := leave.ReasonStated
		if strings.TrimSpace(reason) == "" {
			reason = "Not provided"
		}
		message += fmt.Sprintf("Type: %s\nDuration: %s days\nDates: %s to %s\nReason: %s\n---\n\n",
			capitalize(leave.LeaveType), leave.NumDays.String(), leave.FromDate, leave.ToDate, reason)

		row := []any{
			h.now().In(h.loc).Format(dateLayout + " 15:04:05"),
			userName,
			leave.LeaveType,
			leave.FromDate,
			leave.ToDate,
			leave.NumDays.String(),
			reason,
		}
		if err := h.store.AppendRow(ctx, h.sheetName, row); err != nil {
			return fmt.Errorf("log leave for %s: %w", userName, err)
		}
	}

	return h.slack.PostMessage(ctx, channel, message, threadTS)
}

// decodeLeaveResponse splits the model's array into the leading reply string
// and the structured entries that follow it.
func decodeLeaveResponse(text string) (string, []leaveEntry, error) {
	var raw []json.RawMessage
	if err := jsonutil.DecodeWithFallback(text, &raw); err != nil {
		return "", nil, err
	}
	if len(raw) == 0 {
		return "", nil, fmt.Errorf("empty response array")
	}
	var reply string
	if err := json.Unmarshal(raw[0], &reply); err != nil {
		return "", nil, fmt.Errorf("first element is not a reply string: %w", err)
	}
	entries := make([]leaveEntry, 0, len(raw)-1)
	for i, msg := range raw[1:] {
		var entry leaveEntry
		if err := json.Unmarshal(msg, &entry); err != nil {
			return "", nil, fmt.Errorf("leave entry %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return reply, entries, nil
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
