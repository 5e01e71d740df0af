// Package planner builds a Plan from a task and tool catalog by asking a
// ChatModel for a strict JSON plan, falling back to a single-step plan on
// any parse failure (spec §4.11).
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arclight-ai/sentinel/internal/chatmodel"
	"github.com/arclight-ai/sentinel/pkg/models"
	"github.com/google/uuid"
)

// Planner turns a task into a Plan. It never mutates session state — it
// returns a new Plan for the executor to run.
type Planner struct {
	model chatmodel.ChatModel
}

// New returns a Planner backed by model.
func New(model chatmodel.ChatModel) *Planner {
	return &Planner{model: model}
}

type planStepJSON struct {
	ID           string `json:"id"`
	Description  string `json:"description"`
	ToolName     string `json:"tool_name,omitempty"`
	Params       any    `json:"params,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

type planJSON struct {
	Task     string         `json:"task"`
	Overview string         `json:"overview"`
	Steps    []planStepJSON `json:"steps"`
}

// Plan asks the ChatModel to produce a plan for task given the available
// tools and optional prior transcript. On any failure to get a usable,
// non-empty plan it returns a single-step fallback so the executor can
// still proceed by asking the model to reason directly.
func (p *Planner) Plan(ctx context.Context, task string, tools []chatmodel.ToolSpec, history []models.Message) *models.Plan {
	req := chatmodel.Request{
		System:   buildSystemPrompt(tools),
		Messages: buildMessages(task, history),
	}

	resp, err := p.model.Chat(ctx, req)
	if err != nil {
		return fallbackPlan(task)
	}

	parsed, err := parsePlan(resp.Content)
	if err != nil || len(parsed.Steps) == 0 {
		return fallbackPlan(task)
	}

	return toPlan(parsed)
}

func buildSystemPrompt(tools []chatmodel.ToolSpec) string {
	var b strings.Builder
	b.WriteString("You are a planning assistant. Break the user's task into an ordered sequence of steps.\n")
	b.WriteString("Respond with a single JSON object matching exactly this shape, and nothing else:\n")
	b.WriteString(`{"task":"...","overview":"...","steps":[{"id":"1","description":"...","tool_name":"optional_tool_name","params":{},"dependencies":["id",...]}]}`)
	b.WriteString("\n\nAvailable tools:\n")
	if len(tools) == 0 {
		b.WriteString("(none — every step must have an empty tool_name and rely on your own reasoning)\n")
	}
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s\n  parameters schema: %s\n", t.Name, t.Description, string(t.Parameters))
	}
	return b.String()
}

func buildMessages(task string, history []models.Message) []chatmodel.Message {
	msgs := make([]chatmodel.Message, 0, len(history)+1)
	for _, m := range history {
		msgs = append(msgs, chatmodel.Message{Role: chatmodel.Role(m.Role), Content: m.Content})
	}
	msgs = append(msgs, chatmodel.Message{Role: chatmodel.RoleUser, Content: task})
	return msgs
}

// parsePlan strictly decodes content as a planJSON object. Some models wrap
// JSON in a fenced code block despite instructions; that wrapping is
// stripped before decoding.
func parsePlan(content string) (*planJSON, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var out planJSON
	dec := json.NewDecoder(strings.NewReader(content))
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("planner: decode plan: %w", err)
	}
	return &out, nil
}

func toPlan(pj *planJSON) *models.Plan {
	plan := &models.Plan{Task: pj.Task, Overview: pj.Overview}
	for _, s := range pj.Steps {
		plan.Steps = append(plan.Steps, &models.PlanStep{
			ID:           s.ID,
			Description:  s.Description,
			ToolName:     s.ToolName,
			Params:       s.Params,
			Dependencies: s.Dependencies,
			Status:       models.StepPending,
		})
	}
	return plan
}

func fallbackPlan(task string) *models.Plan {
	return &models.Plan{
		Task:     task,
		Overview: "single-step fallback: reason directly about the task",
		Steps: []*models.PlanStep{
			{ID: uuid.NewString(), Description: task, Status: models.StepPending},
		},
	}
}
