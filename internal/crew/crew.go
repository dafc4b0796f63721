package crew

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/llm"
	"NewsCrew/internal/news"
	"NewsCrew/pkg/logger"
)

// TaskOutput 是单个任务的原始输出。
type TaskOutput struct {
	Key   string `json:"key"`
	Agent string `json:"agent"`
	Raw   string `json:"raw"`
}

// Output 汇总一次 Kickoff 的全部结果，Final 为最后一个任务的输出。
type Output struct {
	Crew     string         `json:"crew"`
	Tasks    []TaskOutput   `json:"tasks"`
	Final    string         `json:"final"`
	Articles []news.Article `json:"articles,omitempty"`
}

// Task 返回指定任务的输出。
func (o *Output) Task(key string) (TaskOutput, bool) {
	if o == nil {
		return TaskOutput{}, false
	}
	for _, t := range o.Tasks {
		if t.Key == key {
			return t, true
		}
	}
	return TaskOutput{}, false
}

// Crew 按顺序执行任务，每个任务由对应智能体的人设驱动一次大模型调用。
type Crew struct {
	def         Definition
	client      llm.Client
	tools       map[string]Tool
	taskTimeout time.Duration
	log         *slog.Logger
}

// Option 定义可选的 Crew 配置。
type Option func(*Crew)

// WithTool 注册一个工具，同名工具会被覆盖。
func WithTool(tool Tool) Option {
	return func(c *Crew) {
		if tool != nil {
			c.tools[tool.Name()] = tool
		}
	}
}

// WithTaskTimeout 限制单个任务的大模型调用时间。
func WithTaskTimeout(timeout time.Duration) Option {
	return func(c *Crew) {
		if timeout < 0 {
			timeout = 0
		}
		c.taskTimeout = timeout
	}
}

// New 校验定义并创建 Crew。
func New(def Definition, client llm.Client, opts ...Option) (*Crew, error) {
	if client == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置大模型客户端")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	c := &Crew{
		def:    def,
		client: client,
		tools:  make(map[string]Tool),
		log:    logger.Named("crew").With(slog.String("crew", def.Name)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Name 返回 crew 名称。
func (c *Crew) Name() string { return c.def.Name }

// Kickoff 以 inputs 插值后依次执行所有任务。inputs 至少需要 subject 或 topic 之一。
func (c *Crew) Kickoff(ctx context.Context, inputs map[string]string) (*Output, error) {
	vars := normalizeInputs(inputs)
	subject := vars["subject"]
	if subject == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "subject 不能为空")
	}

	state := &State{Subject: subject, observations: make(map[string]string)}
	out := &Output{Crew: c.def.Name, Tasks: make([]TaskOutput, 0, len(c.def.Tasks))}

	for idx, task := range c.def.Tasks {
		agent := c.def.Agents[task.Agent]
		started := time.Now()

		// 执行智能体声明的工具，结果在同一次 Kickoff 内复用。
		observations := c.runTools(ctx, agent, state)

		req := llm.Request{
			Messages: []llm.Message{
				llm.System(personaPrompt(agent, vars)),
				llm.User(taskPrompt(task, vars, out.Tasks, observations)),
			},
			Model:       agent.Model,
			Temperature: agent.Temperature,
			JSON:        task.OutputJSON,
		}

		raw, err := c.chat(ctx, req)
		if err != nil {
			c.log.Warn("任务执行失败",
				slog.String("task", task.Key),
				slog.Int("index", idx),
				slog.Any("error", err))
			return nil, err
		}

		out.Tasks = append(out.Tasks, TaskOutput{Key: task.Key, Agent: agent.Key, Raw: raw})
		c.log.Debug("任务完成",
			slog.String("task", task.Key),
			slog.String("agent", agent.Key),
			slog.Duration("elapsed", time.Since(started)))
	}

	out.Final = out.Tasks[len(out.Tasks)-1].Raw
	out.Articles = state.Articles
	return out, nil
}

func (c *Crew) chat(ctx context.Context, req llm.Request) (string, error) {
	callCtx := ctx
	if c.taskTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.taskTimeout)
		defer cancel()
	}
	resp, err := c.client.Chat(callCtx, req)
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return "", xerrors.Wrap(xerrors.CodeTimeout, err, "大模型推理超时")
		}
		if _, ok := xerrors.From(err); ok {
			return "", err
		}
		return "", xerrors.Wrap(xerrors.CodeExecutorFailure, err, "大模型推理失败")
	}
	return strings.TrimSpace(resp.Content), nil
}

func (c *Crew) runTools(ctx context.Context, agent AgentSpec, state *State) []observation {
	var results []observation
	for _, name := range agent.Tools {
		if cached, ok := state.observations[name]; ok {
			results = append(results, observation{tool: name, text: cached})
			continue
		}
		tool, ok := c.tools[name]
		if !ok {
			c.log.Debug("工具未注册，已跳过", slog.String("tool", name), slog.String("agent", agent.Key))
			continue
		}
		text, err := tool.Run(ctx, state)
		if err != nil {
			// 工具失败不终止任务，模型会看到失败说明。
			c.log.Warn("工具执行失败", slog.String("tool", name), slog.Any("error", err))
			text = fmt.Sprintf("工具 %s 执行失败: %v", name, err)
		}
		state.observations[name] = text
		results = append(results, observation{tool: name, text: text})
	}
	return results
}

type observation struct {
	tool string
	text string
}

func normalizeInputs(inputs map[string]string) map[string]string {
	vars := make(map[string]string, len(inputs)+2)
	for k, v := range inputs {
		vars[k] = strings.TrimSpace(v)
	}
	if vars["subject"] == "" {
		vars["subject"] = vars["topic"]
	}
	if vars["topic"] == "" {
		vars["topic"] = vars["subject"]
	}
	return vars
}

func personaPrompt(agent AgentSpec, vars map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. %s\n", Interpolate(agent.Role, vars), Interpolate(agent.Backstory, vars))
	fmt.Fprintf(&b, "Your personal goal is: %s", Interpolate(agent.Goal, vars))
	return b.String()
}

func taskPrompt(task TaskSpec, vars map[string]string, previous []TaskOutput, observations []observation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current Task: %s\n", Interpolate(task.Description, vars))
	if expected := Interpolate(task.ExpectedOutput, vars); strings.TrimSpace(expected) != "" {
		fmt.Fprintf(&b, "\nThis is the expected criteria for your final answer: %s\n", expected)
	}
	if len(previous) > 0 {
		b.WriteString("\n# Context from previous tasks\n")
		for _, p := range previous {
			fmt.Fprintf(&b, "## %s\n%s\n", p.Key, p.Raw)
		}
	}
	if len(observations) > 0 {
		b.WriteString("\n# Tool results\n")
		for _, o := range observations {
			fmt.Fprintf(&b, "## %s\n%s\n", o.tool, o.text)
		}
	}
	if task.OutputJSON {
		b.WriteString("\nRespond with a single valid JSON object and nothing else.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
