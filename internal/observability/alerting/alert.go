package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	xerrors "NewsCrew/internal/errors"
	"NewsCrew/pkg/logger"
)

// Channel 表示通知渠道。
type Channel string

// 支持的通知渠道
const (
	ChannelSlack   Channel = "slack"
	ChannelWebhook Channel = "webhook"
)

// Event 描述一次需要告警的事件。
type Event struct {
	Code       xerrors.Code      `json:"code"`
	Message    string            `json:"message"`
	Severity   xerrors.Severity  `json:"severity"`
	TaskID     string            `json:"task_id,omitempty"`
	Kind       string            `json:"kind,omitempty"`
	Attempts   int               `json:"attempts"`
	MaxRetries int               `json:"max_retries"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Notifier 负责将事件发送到指定渠道。
type Notifier interface {
	Channel() Channel
	Notify(ctx context.Context, event Event) error
}

// Dispatcher 将事件广播给多个通知器。
type Dispatcher interface {
	Notify(ctx context.Context, event Event) error
}

// FanoutDispatcher 实现将事件投递到多个通知器的逻辑。
type FanoutDispatcher struct {
	notifiers map[Channel]Notifier
}

// NewFanout 创建一个新的 FanoutDispatcher。
func NewFanout(notifiers ...Notifier) *FanoutDispatcher {
	set := make(map[Channel]Notifier, len(notifiers))
	for _, n := range notifiers {
		if n == nil {
			continue
		}
		set[n.Channel()] = n
	}
	return &FanoutDispatcher{notifiers: set}
}

// Len 返回已注册的渠道数量。
func (d *FanoutDispatcher) Len() int {
	if d == nil {
		return 0
	}
	return len(d.notifiers)
}

// Notify 将事件广播至所有注册渠道。
func (d *FanoutDispatcher) Notify(ctx context.Context, event Event) error {
	if d == nil {
		return nil
	}
	var errs []error
	for _, notifier := range d.notifiers {
		if err := notifier.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", notifier.Channel(), err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// SlackNotifier 通过 Slack Incoming Webhook 发送告警。
type SlackNotifier struct {
	WebhookURL string
	Client     *http.Client
}

// Channel 返回 Slack 渠道。
func (n *SlackNotifier) Channel() Channel { return ChannelSlack }

// Notify 发送 Slack 消息。
func (n *SlackNotifier) Notify(ctx context.Context, event Event) error {
	if n == nil || strings.TrimSpace(n.WebhookURL) == "" {
		logger.L().Warn("SlackNotifier 未正确配置，跳过发送", slog.String("task_id", event.TaskID))
		return nil
	}
	text := fmt.Sprintf("*[%s]* %s - %s\n任务: %s (%s) 重试 %d/%d",
		event.Severity, event.Code, event.Message, event.TaskID, event.Kind, event.Attempts, event.MaxRetries)
	if len(event.Metadata) > 0 {
		keys := make([]string, 0, len(event.Metadata))
		for k := range event.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			text += fmt.Sprintf("\n• %s: %s", k, event.Metadata[k])
		}
	}
	return postJSON(ctx, n.Client, n.WebhookURL, nil, map[string]string{"text": text})
}

// WebhookNotifier 将事件原样以 JSON 投递到任意 HTTP 端点。
type WebhookNotifier struct {
	URL     string
	Headers map[string]string
	Client  *http.Client
}

// Channel 返回通用 webhook 渠道。
func (n *WebhookNotifier) Channel() Channel { return ChannelWebhook }

// Notify 发送事件。
func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	if n == nil || strings.TrimSpace(n.URL) == "" {
		logger.L().Warn("WebhookNotifier 未正确配置，跳过发送", slog.String("task_id", event.TaskID))
		return nil
	}
	return postJSON(ctx, n.Client, n.URL, n.Headers, event)
}

func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any) error {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("编码告警内容失败: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("构造告警请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("发送告警失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("告警端点返回 %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
