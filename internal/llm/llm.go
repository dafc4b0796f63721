package llm

import (
	"context"
	"strings"
)

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message 是对话中的一条消息。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request 描述一次对话补全请求。Model 与 Temperature 为空时使用客户端默认值。
type Request struct {
	Messages    []Message
	Model       string
	Temperature *float64
	// JSON 要求模型返回一个 JSON 对象。
	JSON bool
}

// Usage 记录本次调用消耗的 token。
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response 是大模型返回的文本结果。
type Response struct {
	Content string
	Model   string
	Usage   Usage
}

// Client 定义了调用大模型的统一接口。
type Client interface {
	Chat(ctx context.Context, req Request) (*Response, error)
}

// System 构造一条系统消息。
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User 构造一条用户消息。
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Float 返回指向 v 的指针，便于设置 Request.Temperature。
func Float(v float64) *float64 { return &v }

// Ask 是只包含 system 与 user 两条消息的简化调用。
func Ask(ctx context.Context, client Client, system, user string) (string, error) {
	messages := make([]Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, System(system))
	}
	messages = append(messages, User(user))
	resp, err := client.Chat(ctx, Request{Messages: messages})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// ClientFunc 让普通函数满足 Client 接口，主要用于测试。
type ClientFunc func(ctx context.Context, req Request) (*Response, error)

// Chat 实现 Client。
func (f ClientFunc) Chat(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
