package crew

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	xerrors "NewsCrew/internal/errors"
	"NewsCrew/pkg/logger"
)

// AgentSpec 描述一个智能体的人设。
type AgentSpec struct {
	Key         string   `yaml:"-" json:"key"`
	Role        string   `yaml:"role" json:"role"`
	Goal        string   `yaml:"goal" json:"goal"`
	Backstory   string   `yaml:"backstory" json:"backstory"`
	Tools       []string `yaml:"tools" json:"tools,omitempty"`
	Model       string   `yaml:"llm" json:"model,omitempty"`
	Temperature *float64 `yaml:"temperature" json:"temperature,omitempty"`
}

// TaskSpec 描述一个按顺序执行的任务。
type TaskSpec struct {
	Key            string `yaml:"-" json:"key"`
	Description    string `yaml:"description" json:"description"`
	ExpectedOutput string `yaml:"expected_output" json:"expected_output"`
	Agent          string `yaml:"agent" json:"agent"`
	OutputJSON     bool   `yaml:"output_json" json:"output_json,omitempty"`
}

// Definition 是一个完整的 crew：智能体集合加有序任务列表。
type Definition struct {
	Name   string
	Agents map[string]AgentSpec
	Tasks  []TaskSpec
}

// Validate 检查任务引用的智能体都存在且内容完整。
func (d Definition) Validate() error {
	if len(d.Tasks) == 0 {
		return xerrors.New(xerrors.CodeConfigInvalid, fmt.Sprintf("crew %s 没有任务", d.Name))
	}
	for _, task := range d.Tasks {
		if strings.TrimSpace(task.Description) == "" {
			return xerrors.New(xerrors.CodeConfigInvalid, fmt.Sprintf("任务 %s 缺少 description", task.Key))
		}
		agent, ok := d.Agents[task.Agent]
		if !ok {
			return xerrors.New(xerrors.CodeConfigInvalid, fmt.Sprintf("任务 %s 引用了不存在的智能体 %q", task.Key, task.Agent))
		}
		if strings.TrimSpace(agent.Role) == "" {
			return xerrors.New(xerrors.CodeConfigInvalid, fmt.Sprintf("智能体 %s 缺少 role", agent.Key))
		}
	}
	return nil
}

// ParseAgents 解析以名称为键的智能体 YAML。
func ParseAgents(content []byte) (map[string]AgentSpec, error) {
	raw := map[string]AgentSpec{}
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfigInvalid, err, "解析智能体配置失败")
	}
	agents := make(map[string]AgentSpec, len(raw))
	for key, spec := range raw {
		spec.Key = key
		agents[key] = spec
	}
	return agents, nil
}

// ParseTasks 解析以名称为键的任务 YAML，并保留文件中的先后顺序。
func ParseTasks(content []byte) ([]TaskSpec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfigInvalid, err, "解析任务配置失败")
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, xerrors.New(xerrors.CodeConfigInvalid, "任务配置必须是以任务名为键的映射")
	}
	tasks := make([]TaskSpec, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		var spec TaskSpec
		if err := root.Content[i+1].Decode(&spec); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeConfigInvalid, err, fmt.Sprintf("解析任务 %s 失败", root.Content[i].Value))
		}
		spec.Key = root.Content[i].Value
		tasks = append(tasks, spec)
	}
	return tasks, nil
}

// LoadDefinition 从两个 YAML 文件加载 crew 定义。
func LoadDefinition(name, agentsPath, tasksPath string) (Definition, error) {
	agentsRaw, err := os.ReadFile(agentsPath)
	if err != nil {
		return Definition{}, xerrors.Wrap(xerrors.CodeConfigInvalid, err, "读取智能体配置失败")
	}
	tasksRaw, err := os.ReadFile(tasksPath)
	if err != nil {
		return Definition{}, xerrors.Wrap(xerrors.CodeConfigInvalid, err, "读取任务配置失败")
	}
	agents, err := ParseAgents(agentsRaw)
	if err != nil {
		return Definition{}, err
	}
	tasks, err := ParseTasks(tasksRaw)
	if err != nil {
		return Definition{}, err
	}
	def := Definition{Name: name, Agents: agents, Tasks: tasks}
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// Interpolate 将 {key} 形式的占位符替换为输入值，未知占位符保持原样。
func Interpolate(template string, inputs map[string]string) string {
	if len(inputs) == 0 || !strings.Contains(template, "{") {
		return template
	}
	pairs := make([]string, 0, len(inputs)*2)
	for key, value := range inputs {
		pairs = append(pairs, "{"+key+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// LoadOrDefault 加载 YAML 定义；路径为空或加载失败时记录错误并返回 fallback。
func LoadOrDefault(agentsPath, tasksPath string, fallback Definition) Definition {
	if strings.TrimSpace(agentsPath) == "" || strings.TrimSpace(tasksPath) == "" {
		return fallback
	}
	def, err := LoadDefinition(fallback.Name, agentsPath, tasksPath)
	if err != nil {
		logger.L().Error("加载 crew 配置失败，使用内置定义",
			slog.String("crew", fallback.Name),
			slog.String("agents_file", agentsPath),
			slog.String("tasks_file", tasksPath),
			slog.Any("error", err))
		return fallback
	}
	return def
}
