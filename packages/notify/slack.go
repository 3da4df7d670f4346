package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SlackNotifier posts to a Slack incoming webhook
type SlackNotifier struct {
	webhookURL string
	channel    string
	username   string
	iconEmoji  string
	client     *http.Client
}

// SlackOption is a functional option for SlackNotifier
type SlackOption func(*SlackNotifier)

// WithSlackChannel sets the Slack channel
func WithSlackChannel(channel string) SlackOption {
	return func(s *SlackNotifier) {
		s.channel = channel
	}
}

// WithSlackUsername sets the Slack bot username
func WithSlackUsername(username string) SlackOption {
	return func(s *SlackNotifier) {
		s.username = username
	}
}

// WithSlackIconEmoji sets the Slack bot icon emoji
func WithSlackIconEmoji(emoji string) SlackOption {
	return func(s *SlackNotifier) {
		s.iconEmoji = emoji
	}
}

func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	s := &SlackNotifier{
		webhookURL: webhookURL,
		username:   "hitprobe",
		iconEmoji:  ":test_tube:",
		client:     &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *SlackNotifier) Name() string {
	return "slack"
}

// slackMessage represents a Slack webhook message
type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

// slackAttachment represents a Slack message attachment
type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	TS     int64        `json:"ts,omitempty"`
}

// slackField represents a field in a Slack attachment
type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// maxListedFailures bounds the failure list in one message.
const maxListedFailures = 10

func (s *SlackNotifier) Notify(ctx context.Context, summary *RunSummary) error {
	color := "good"
	title := "All scenarios passed"
	emoji := ":white_check_mark:"

	if summary.FailedScenarios > 0 {
		color = "danger"
		title = fmt.Sprintf("%d of %d scenarios failed", summary.FailedScenarios, summary.TotalScenarios)
		emoji = ":x:"
	} else if summary.IsRecovery {
		title = "Scenarios recovered"
		emoji = ":tada:"
	}

	fields := []slackField{
		{Title: "Scenarios", Value: fmt.Sprintf("%d", summary.TotalScenarios), Short: true},
		{Title: "Passed", Value: fmt.Sprintf("%d", summary.PassedScenarios), Short: true},
		{Title: "Failed", Value: fmt.Sprintf("%d", summary.FailedScenarios), Short: true},
		{Title: "Attempts", Value: fmt.Sprintf("%d", summary.Attempts), Short: true},
		{Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String(), Short: true},
	}
	if summary.BaseURL != "" {
		fields = append(fields, slackField{Title: "Target", Value: summary.BaseURL, Short: true})
	}

	var text strings.Builder
	if len(summary.FailedResults) > 0 {
		text.WriteString("*Failed scenarios:*\n")
		for i, fs := range summary.FailedResults {
			if i == maxListedFailures {
				fmt.Fprintf(&text, "_and %d more_\n", len(summary.FailedResults)-maxListedFailures)
				break
			}
			fmt.Fprintf(&text, "• `%s` [%s]", fs.Name, fs.Kind)
			if fs.Source != "" {
				fmt.Fprintf(&text, " (%s)", fs.Source)
			}
			text.WriteString("\n")
			if fs.Error != "" {
				fmt.Fprintf(&text, "  - %s\n", fs.Error)
			}
		}
	}

	attachment := slackAttachment{
		Color:  color,
		Title:  fmt.Sprintf("%s %s", emoji, title),
		Text:   text.String(),
		Fields: fields,
		Footer: "hitprobe run " + summary.RunID,
		TS:     time.Now().Unix(),
	}

	msg := slackMessage{
		Channel:     s.channel,
		Username:    s.username,
		IconEmoji:   s.iconEmoji,
		Attachments: []slackAttachment{attachment},
	}

	return s.send(ctx, msg)
}

func (s *SlackNotifier) send(ctx context.Context, msg slackMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Slack notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack API returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
