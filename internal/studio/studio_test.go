package studio

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/imagegen"
	"NewsCrew/internal/knowledge"
	"NewsCrew/internal/llm"
	"NewsCrew/internal/news"
	"NewsCrew/internal/storage/bolt"
	"NewsCrew/internal/task"
)

const longPost = "Artificial intelligence is reshaping newsrooms around the world, and editors are learning to work alongside new tools every single day."

type scriptedLLM struct {
	mu       sync.Mutex
	requests []llm.Request
}

func (s *scriptedLLM) Chat(_ context.Context, req llm.Request) (*llm.Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	user := req.Messages[len(req.Messages)-1].Content
	switch {
	case req.JSON && strings.Contains(user, "Current Task"):
		return &llm.Response{Content: "```json\n{\"article\":\"# AI\\nbody\",\"social_media_posts\":[{\"platform\":\"Twitter\",\"content\":\"" + longPost + "\"},{\"content\":\"no platform\"}]}\n```"}, nil
	case req.JSON:
		return &llm.Response{Content: `{"top":"when the crew","bottom":"ships on friday"}`}, nil
	case strings.HasPrefix(user, "Summarize"):
		return &llm.Response{Content: "summary of " + strings.SplitN(user, "\n", 2)[1]}, nil
	case strings.HasPrefix(user, "Refine"):
		return &llm.Response{Content: "refined"}, nil
	case strings.HasPrefix(user, "Create a"):
		return &llm.Response{Content: "post: " + user}, nil
	default:
		return &llm.Response{Content: "output for " + user[:min(20, len(user))]}, nil
	}
}

func (s *scriptedLLM) all() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Request(nil), s.requests...)
}

func testArticles() []news.Article {
	return []news.Article{
		{Title: "Chips", URL: "https://example.com/chips", Description: "New AI chips announced"},
		{Title: "Policy", URL: "https://example.com/policy", Description: "AI policy draft published"},
	}
}

func newTestStudio(t *testing.T, client llm.Client, opts ...Option) *Studio {
	t.Helper()
	archive, err := bolt.Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = archive.Close() })

	searcher := news.SearcherFunc(func(context.Context, news.Query) ([]news.Article, error) {
		return testArticles(), nil
	})
	opts = append([]Option{WithArchive(archive)}, opts...)
	s, err := New(client, searcher, opts...)
	require.NoError(t, err)
	return s
}

func TestCreateContentWrapsPostsAndArchives(t *testing.T) {
	client := &scriptedLLM{}
	s := newTestStudio(t, client)

	pack, err := s.CreateContent(context.Background(), "  AI in newsrooms ")
	require.NoError(t, err)
	require.Equal(t, "AI in newsrooms", pack.Subject)
	require.Equal(t, "# AI\nbody", pack.Article)
	require.Len(t, pack.Posts, 2)
	require.Equal(t, "Twitter", pack.Posts[0].Platform)
	require.Equal(t, "Unknown", pack.Posts[1].Platform)
	for _, line := range strings.Split(pack.Posts[0].Content, "\n") {
		require.LessOrEqual(t, len(line), 50)
	}
	require.Len(t, pack.Articles, 2)
	require.Len(t, client.all(), 4)

	require.NotEmpty(t, pack.ID)
	record, err := s.Get(context.Background(), pack.ID)
	require.NoError(t, err)
	require.Equal(t, "content_pack", record.Kind)
	require.Contains(t, string(record.Posts), "Twitter")
}

func TestDigestRunsCrewAndRecordsHistory(t *testing.T) {
	s := newTestStudio(t, &scriptedLLM{})

	_, err := s.Digest(context.Background(), " ")
	require.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))

	digest, err := s.Digest(context.Background(), "robotics")
	require.NoError(t, err)
	require.NotEmpty(t, digest.Text)

	history, err := s.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "news_digest", history[0].Kind)
	require.Equal(t, digest.Text, history[0].Digest)
}

func TestGeneratePostAddsPlatformGuidelines(t *testing.T) {
	client := &scriptedLLM{}
	provider := knowledge.NewStaticProvider([]knowledge.Snippet{
		{Title: "LinkedIn tone", Content: "Keep it professional", Platforms: []string{"linkedin"}},
	}, 3)
	s := newTestStudio(t, client, WithKnowledgeProvider(provider))

	text, err := s.GeneratePost(context.Background(), "quarterly results", "", "")
	require.NoError(t, err)
	require.Equal(t, "post: Create a formal LinkedIn-friendly post: quarterly results", text)

	req := client.all()[0]
	require.Len(t, req.Messages, 2)
	require.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	require.Contains(t, req.Messages[0].Content, "Keep it professional")
}

func TestSummarizeAndRefine(t *testing.T) {
	s := newTestStudio(t, &scriptedLLM{})

	summaries, err := s.SearchAndSummarize(context.Background(), "AI", "casual", time.Time{})
	require.NoError(t, err)
	require.Equal(t, []Summary{
		{Summary: "summary of New AI chips announced", Source: "https://example.com/chips"},
		{Summary: "summary of AI policy draft published", Source: "https://example.com/policy"},
	}, summaries)

	refined, err := s.Refine(context.Background(), "draft", "make it shorter")
	require.NoError(t, err)
	require.Equal(t, "refined", refined)

	_, err = s.Refine(context.Background(), "", "x")
	require.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
}

func TestGenerateDispatchesByContentType(t *testing.T) {
	generator := imagegenFunc(func(_ context.Context, req imagegen.Request) ([]imagegen.Image, error) {
		return []imagegen.Image{{B64JSON: base64.StdEncoding.EncodeToString(testPNG(t))}}, nil
	})
	s := newTestStudio(t, &scriptedLLM{}, WithImageGenerator(generator))
	ctx := context.Background()

	text, err := s.Generate(ctx, PromptRequest{Prompt: "launch day"})
	require.NoError(t, err)
	require.Equal(t, ContentText, text.ContentType)
	require.Equal(t, "formal", text.Tone)
	require.Equal(t, "LinkedIn", text.Platform)
	require.NotEmpty(t, text.Text)

	img, err := s.Generate(ctx, PromptRequest{Prompt: "launch day", ContentType: "image"})
	require.NoError(t, err)
	require.Len(t, img.Images, 1)

	meme, err := s.Generate(ctx, PromptRequest{Prompt: "launch day", ContentType: "MEME"})
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(meme.Meme)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)

	_, err = s.Generate(ctx, PromptRequest{Prompt: "launch day", ContentType: "video"})
	require.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))

	_, err = s.Generate(ctx, PromptRequest{ContentType: "text"})
	require.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
}

func TestGenerateMemeUsesProvidedTemplate(t *testing.T) {
	s := newTestStudio(t, &scriptedLLM{})
	result, err := s.Generate(context.Background(), PromptRequest{
		Prompt:      "deploys",
		ContentType: ContentMeme,
		Template:    base64.StdEncoding.EncodeToString(testPNG(t)),
		TopText:     "one does not simply",
		BottomText:  "deploy on friday",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Meme)

	_, err = s.Generate(context.Background(), PromptRequest{Prompt: "x", ContentType: ContentImage})
	require.Equal(t, xerrors.CodeInitializationFailure, xerrors.CodeOf(err))
}

func TestExecuteAndRecoverFromArchive(t *testing.T) {
	s := newTestStudio(t, &scriptedLLM{})
	ctx := context.Background()

	result, err := s.Execute(ctx, task.Request{Kind: task.KindPost, Subject: "climate summit", Input: map[string]string{"platform": "Twitter", "tone": "witty"}})
	require.NoError(t, err)
	require.Equal(t, "post: Create a witty Twitter-friendly post: climate summit", result.Output)
	require.Len(t, result.Posts, 1)
	require.NotEmpty(t, result.ArchiveID)

	recovered, err := s.Recover(ctx, &task.Task{ID: "t1", Kind: task.KindPost, Subject: "climate summit"}, errors.New("model refused"))
	require.NoError(t, err)
	require.NotNil(t, recovered)
	require.Equal(t, result.ArchiveID, recovered.ArchiveID)
	require.Equal(t, "Twitter", recovered.Posts[0].Platform)
	require.Contains(t, recovered.Degraded, "model refused")

	none, err := s.Recover(ctx, &task.Task{ID: "t2", Kind: task.KindNewsDigest, Subject: "climate summit"}, errors.New("x"))
	require.NoError(t, err)
	require.Nil(t, none)

	_, err = s.Execute(ctx, task.Request{Kind: "video", Subject: "x"})
	require.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
}

func TestNewRequiresClient(t *testing.T) {
	_, err := New(nil, nil)
	require.Equal(t, xerrors.CodeInitializationFailure, xerrors.CodeOf(err))
}

type imagegenFunc func(ctx context.Context, req imagegen.Request) ([]imagegen.Image, error)

func (f imagegenFunc) Generate(ctx context.Context, req imagegen.Request) ([]imagegen.Image, error) {
	return f(ctx, req)
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 240, 160))
	for y := 0; y < 160; y++ {
		for x := 0; x < 240; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 90, B: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
