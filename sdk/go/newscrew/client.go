package newscrew

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"sync"
	"time"
)

// DefaultHTTPTimeout is used by clients created without a custom http.Client.
// Content generation runs several LLM calls, so it is longer than a typical
// API timeout.
const DefaultHTTPTimeout = 5 * time.Minute

// Client wraps the HTTP interactions with the NewsCrew REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

// Post is a social media post produced for one platform.
type Post struct {
	Platform string `json:"platform"`
	Content  string `json:"content"`
}

// TaskSubmission is the payload required to queue a new task.
type TaskSubmission struct {
	ID      string            `json:"id,omitempty"`
	Kind    string            `json:"kind"`
	Subject string            `json:"subject"`
	Input   map[string]string `json:"input,omitempty"`
}

// TaskResult holds the output of a finished task.
type TaskResult struct {
	Output    string `json:"output,omitempty"`
	Article   string `json:"article,omitempty"`
	Posts     []Post `json:"posts,omitempty"`
	ArchiveID string `json:"archive_id,omitempty"`
	Degraded  string `json:"degraded,omitempty"`
}

// Task is the server view of a queued task.
type Task struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	Subject    string            `json:"subject"`
	Input      map[string]string `json:"input,omitempty"`
	Status     string            `json:"status"`
	Attempts   int               `json:"attempts"`
	MaxRetries int               `json:"max_retries"`
	LastError  string            `json:"last_error,omitempty"`
	ErrorCode  string            `json:"error_code,omitempty"`
	Result     *TaskResult       `json:"result,omitempty"`
	CreatedAt  int64             `json:"created_at"`
	UpdatedAt  int64             `json:"updated_at"`
}

// Finished reports whether the task reached a terminal status.
func (t *Task) Finished() bool {
	return t.Status == "succeeded" || t.Status == "failed"
}

// GenerateRequest asks the server for a post, an image or a meme.
type GenerateRequest struct {
	Prompt      string `json:"prompt"`
	Tone        string `json:"tone,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Platform    string `json:"platform,omitempty"`
	Template    string `json:"template,omitempty"`
	TopText     string `json:"top_text,omitempty"`
	BottomText  string `json:"bottom_text,omitempty"`
}

// Image is a generated picture, either inline base64 or a URL.
type Image struct {
	B64JSON string `json:"b64_json,omitempty"`
	URL     string `json:"url,omitempty"`
}

// GenerateResult is the response of Generate.
type GenerateResult struct {
	Prompt      string  `json:"prompt"`
	Tone        string  `json:"tone"`
	ContentType string  `json:"content_type"`
	Platform    string  `json:"platform"`
	Text        string  `json:"text,omitempty"`
	Images      []Image `json:"images,omitempty"`
	Meme        string  `json:"meme,omitempty"`
}

// Summary is one summarised news article.
type Summary struct {
	Summary string `json:"summary"`
	Source  string `json:"source"`
}

// Document is a knowledge base entry.
type Document struct {
	ID       string         `json:"id,omitempty"`
	Text     string         `json:"text,omitempty"`
	URL      string         `json:"url,omitempty"`
	Title    string         `json:"title,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Source is a document that contributed to an answer.
type Source struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Title string  `json:"title,omitempty"`
	URL   string  `json:"url,omitempty"`
}

// Answer is the response of Ask.
type Answer struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []Source `json:"sources"`
}

// APIError represents a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
	Details    string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Details != "" {
		return fmt.Sprintf("newscrew api error (%d): %s - %s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("newscrew api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the NewsCrew API. When httpClient is
// nil, a default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// AccessToken returns the bearer token sent with every request.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// SetAccessToken sets the bearer token. An empty token disables the header.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

// Digest runs the news digest crew synchronously and returns its text.
func (c *Client) Digest(ctx context.Context, topic string) (string, error) {
	var out struct {
		Results string `json:"results"`
	}
	if err := c.get(ctx, "/api/news", url.Values{"topic": {topic}}, &out); err != nil {
		return "", err
	}
	return out.Results, nil
}

// Generate produces a post, an image or a meme.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	var out GenerateResult
	if err := c.post(ctx, "/generate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refine rewrites content following an instruction.
func (c *Client) Refine(ctx context.Context, content, instruction string) (string, error) {
	var out struct {
		Refined string `json:"refined_content"`
	}
	payload := map[string]string{"content": content, "refinement": instruction}
	if err := c.post(ctx, "/refine", payload, &out); err != nil {
		return "", err
	}
	return out.Refined, nil
}

// Summarize searches news for query and summarises each article. since may be
// empty or a YYYY-MM-DD date.
func (c *Client) Summarize(ctx context.Context, query, tone, since string) ([]Summary, error) {
	var out []Summary
	payload := map[string]string{"query": query, "tone": tone, "since": since}
	if err := c.post(ctx, "/summarize", payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitTask queues a task and returns it in pending state.
func (c *Client) SubmitTask(ctx context.Context, submission TaskSubmission) (*Task, error) {
	var out Task
	if err := c.post(ctx, "/api/v1/tasks", submission, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTask fetches a task. A positive wait lets the server hold the request
// until the task finishes or wait elapses.
func (c *Client) GetTask(ctx context.Context, id string, wait time.Duration) (*Task, error) {
	var query url.Values
	if wait > 0 {
		query = url.Values{"wait": {strconv.Itoa(int(wait.Seconds()))}}
	}
	var out Task
	if err := c.get(ctx, "/api/v1/tasks/"+url.PathEscape(id), query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTasks lists tasks. filters are passed through as query parameters
// (status, kind, q, limit, offset, order, has_result, since, until).
func (c *Client) ListTasks(ctx context.Context, filters url.Values) ([]Task, error) {
	var out struct {
		Tasks []Task `json:"tasks"`
	}
	if err := c.get(ctx, "/api/v1/tasks", filters, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// IngestDocument stores a document. When Text is empty the server fetches URL.
func (c *Client) IngestDocument(ctx context.Context, doc Document) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/api/v1/documents", doc, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// GetDocument reads a stored document.
func (c *Client) GetDocument(ctx context.Context, id string) (*Document, error) {
	var out Document
	if err := c.get(ctx, "/api/v1/documents/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ask answers a question from the stored documents.
func (c *Client) Ask(ctx context.Context, question string, topK int) (*Answer, error) {
	var out Answer
	payload := map[string]any{"question": question, "top_k": topK}
	if err := c.post(ctx, "/api/v1/ask", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	u := c.baseURL.ResolveReference(rel)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		// 非 JSON 响应（例如 HTML 错误页）直接使用原文。
		if json.Unmarshal(data, &apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return &apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
