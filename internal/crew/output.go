package crew

import (
	"encoding/json"
	"sort"
	"strings"
)

// 解析内容输出时使用的占位值。
const (
	NoArticle       = "No article generated"
	UnknownPlatform = "Unknown"
)

// SocialPost 是某个平台的一条帖子。
type SocialPost struct {
	Platform string `json:"platform"`
	Content  string `json:"content"`
}

// ContentOutput 是 content_pack 的结构化结果。
type ContentOutput struct {
	Article string       `json:"article"`
	Posts   []SocialPost `json:"social_media_posts"`
}

type rawContent struct {
	Article string          `json:"article"`
	Posts   json.RawMessage `json:"social_media_posts"`
}

type rawPost struct {
	Platform string `json:"platform"`
	Content  string `json:"content"`
	Post     string `json:"post"`
}

// ParseContentOutput 从最后一个任务的 JSON 中提取文章与帖子。
// JSON 中没有文章时回退到 create_content 任务的原文。
func ParseContentOutput(out *Output) ContentOutput {
	result := ContentOutput{}
	if out == nil {
		result.Article = NoArticle
		return result
	}

	var parsed rawContent
	if body := extractJSON(out.Final); body != "" {
		if err := json.Unmarshal([]byte(body), &parsed); err != nil {
			parsed = rawContent{}
			// 兼容模型直接返回帖子数组的情况。
			if strings.HasPrefix(body, "[") {
				parsed.Posts = json.RawMessage(body)
			}
		}
	}

	result.Article = strings.TrimSpace(parsed.Article)
	if result.Article == "" {
		if task, ok := out.Task(TaskCreateContent); ok {
			result.Article = strings.TrimSpace(task.Raw)
		}
	}
	if result.Article == "" {
		result.Article = NoArticle
	}
	result.Posts = parsePosts(parsed.Posts)
	return result
}

func parsePosts(raw json.RawMessage) []SocialPost {
	if len(raw) == 0 {
		return nil
	}
	var items []rawPost
	if err := json.Unmarshal(raw, &items); err != nil {
		// 也接受 {"LinkedIn": "..."} 形式。
		var byPlatform map[string]string
		if err := json.Unmarshal(raw, &byPlatform); err != nil {
			return nil
		}
		for platform, content := range byPlatform {
			items = append(items, rawPost{Platform: platform, Content: content})
		}
		sort.Slice(items, func(i, j int) bool { return items[i].Platform < items[j].Platform })
	}
	posts := make([]SocialPost, 0, len(items))
	for _, item := range items {
		content := strings.TrimSpace(item.Content)
		if content == "" {
			content = strings.TrimSpace(item.Post)
		}
		if content == "" {
			continue
		}
		platform := strings.TrimSpace(item.Platform)
		if platform == "" {
			platform = UnknownPlatform
		}
		posts = append(posts, SocialPost{Platform: platform, Content: content})
	}
	return posts
}

// extractJSON 去掉 markdown 代码块，返回第一个 JSON 对象或数组。
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end < start {
		return ""
	}
	return text[start : end+1]
}
