package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Provider 按平台和主题返回写作规范片段。
type Provider interface {
	Query(platform, topic string) []Snippet
}

// Snippet 描述一条写作规范。Platforms 为空表示适用于所有平台。
type Snippet struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Platforms []string `json:"platforms"`
	Keywords  []string `json:"keywords"`
}

// StaticProvider 通过加载 JSON 文件提供静态规范检索能力。
type StaticProvider struct {
	items      []Snippet
	maxResults int
}

// NewStaticProvider 创建静态知识库实例。
func NewStaticProvider(items []Snippet, maxResults int) *StaticProvider {
	if maxResults <= 0 {
		maxResults = 3
	}
	return &StaticProvider{
		items:      items,
		maxResults: maxResults,
	}
}

// DefaultProvider 返回内置的常见社交平台规范。
func DefaultProvider() *StaticProvider {
	return NewStaticProvider(defaultSnippets, 3)
}

// LoadStaticProvider 从 JSON 文件加载规范条目。
func LoadStaticProvider(path string, maxResults int) (*StaticProvider, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("知识库文件路径不能为空")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("解析知识库路径失败: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("读取知识库文件失败: %w", err)
	}
	defer file.Close()

	var entries []Snippet
	if err := json.NewDecoder(file).Decode(&entries); err != nil {
		return nil, fmt.Errorf("解析知识库文件失败: %w", err)
	}

	return NewStaticProvider(entries, maxResults), nil
}

// Query 先按平台筛选，再按主题关键词匹配。平台专属条目排在通用条目之前。
func (p *StaticProvider) Query(platform, topic string) []Snippet {
	if p == nil {
		return nil
	}

	platform = strings.ToLower(strings.TrimSpace(platform))
	topic = strings.ToLower(strings.TrimSpace(topic))

	var specific, general []Snippet
	for _, item := range p.items {
		if !matchesTopic(item, topic) {
			continue
		}
		switch {
		case len(item.Platforms) == 0:
			general = append(general, item)
		case containsFold(item.Platforms, platform):
			specific = append(specific, item)
		}
	}

	results := append(specific, general...)
	if len(results) > p.maxResults {
		results = results[:p.maxResults]
	}
	return results
}

// Render 将片段拼接为可放入系统提示词的文本。
func Render(snippets []Snippet) string {
	if len(snippets) == 0 {
		return ""
	}
	var b strings.Builder
	for idx, s := range snippets {
		fmt.Fprintf(&b, "[%d] %s: %s\n", idx+1, strings.TrimSpace(s.Title), strings.TrimSpace(s.Content))
	}
	return strings.TrimRight(b.String(), "\n")
}

func matchesTopic(snippet Snippet, topic string) bool {
	if len(snippet.Keywords) == 0 {
		return true
	}
	for _, keyword := range snippet.Keywords {
		normalized := strings.ToLower(strings.TrimSpace(keyword))
		if normalized != "" && strings.Contains(topic, normalized) {
			return true
		}
	}
	return false
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return true
		}
	}
	return false
}

var defaultSnippets = []Snippet{
	{
		Title:     "LinkedIn",
		Content:   "Professional register, open with a one-line hook, short paragraphs, at most three hashtags at the end, 1300 characters or fewer.",
		Platforms: []string{"linkedin"},
	},
	{
		Title:     "Twitter",
		Content:   "Stay under 280 characters, one idea per post, at most two hashtags, no link shorteners.",
		Platforms: []string{"twitter", "x"},
	},
	{
		Title:     "Facebook",
		Content:   "Conversational tone, end with a question to invite comments, keep it under 80 words.",
		Platforms: []string{"facebook"},
	},
	{
		Title:     "Instagram",
		Content:   "Lead with the visual, caption under 150 words, up to ten relevant hashtags on a separate line.",
		Platforms: []string{"instagram"},
	},
	{
		Title:   "Attribution",
		Content: "Credit the original news source by name and never invent quotes or figures.",
	},
}

// Ensure StaticProvider 实现 Provider 接口。
var _ Provider = (*StaticProvider)(nil)
