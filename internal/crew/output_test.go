package crew

import "testing"

func TestParseContentOutput(t *testing.T) {
	out := &Output{
		Tasks: []TaskOutput{{Key: TaskCreateContent, Raw: "# Draft"}},
		Final: "```json\n{\"article\": \"# Final\", \"social_media_posts\": [{\"platform\": \"LinkedIn\", \"content\": \"Read this\"}, {\"content\": \"no platform\"}, {\"platform\": \"X\"}]}\n```",
	}
	got := ParseContentOutput(out)
	if got.Article != "# Final" {
		t.Fatalf("unexpected article %q", got.Article)
	}
	if len(got.Posts) != 2 || got.Posts[0].Platform != "LinkedIn" || got.Posts[1].Platform != UnknownPlatform {
		t.Fatalf("unexpected posts %+v", got.Posts)
	}
}

func TestParseContentOutputFallbacks(t *testing.T) {
	got := ParseContentOutput(&Output{
		Tasks: []TaskOutput{{Key: TaskCreateContent, Raw: "  draft body "}},
		Final: `{"social_media_posts": {"Twitter": "short", "Facebook": "long"}}`,
	})
	if got.Article != "draft body" {
		t.Fatalf("expected article from create_content, got %q", got.Article)
	}
	if len(got.Posts) != 2 || got.Posts[0].Platform != "Facebook" {
		t.Fatalf("unexpected posts %+v", got.Posts)
	}

	got = ParseContentOutput(&Output{Final: "not json at all"})
	if got.Article != NoArticle || len(got.Posts) != 0 {
		t.Fatalf("unexpected result %+v", got)
	}

	got = ParseContentOutput(&Output{Final: `[{"platform":"Instagram","post":"pic"}]`})
	if len(got.Posts) != 1 || got.Posts[0].Content != "pic" {
		t.Fatalf("expected bare array to parse, got %+v", got.Posts)
	}

	if ParseContentOutput(nil).Article != NoArticle {
		t.Fatalf("expected default article for nil output")
	}
}
