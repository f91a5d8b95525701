// Package identity implements the identity tool cluster: register_agent,
// create_agent_identity, and whois.
package identity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

type registerAgentParams struct {
	ProjectSlug string `json:"project_slug"`
	HumanKey    string `json:"human_key,omitempty"`
	Name        string `json:"name"`
	Program     string `json:"program,omitempty"`
	Model       string `json:"model,omitempty"`
	Task        string `json:"task,omitempty"`
}

// RegisterAgent registers a new agent identity within a project, creating
// the project first if it doesn't already exist.
type RegisterAgent struct {
	identity *domain.IdentityService
	toolName string
}

// NewRegisterAgent builds the register_agent tool.
func NewRegisterAgent(id *domain.IdentityService) *RegisterAgent {
	return &RegisterAgent{identity: id, toolName: "register_agent"}
}

func (t *RegisterAgent) Name() string { return t.toolName }

func (t *RegisterAgent) Description() string {
	return "Register a new agent identity within a project (created if absent). Returns the agent's id and default attachments/contact policies."
}

func (t *RegisterAgent) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string", "description": "Stable slug identifying the project"},
    "human_key": {"type": "string", "description": "Human-readable project label; defaults to project_slug"},
    "name": {"type": "string", "description": "Agent name, unique within the project"},
    "program": {"type": "string", "description": "Coding agent program (e.g. claude-code, cursor)"},
    "model": {"type": "string", "description": "Model identifier the agent is running"},
    "task": {"type": "string", "description": "Short description of what this agent is working on"}
  },
  "required": ["project_slug", "name"]
}`)
}

func (t *RegisterAgent) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p registerAgentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.ProjectSlug == "" || p.Name == "" {
		return mcp.ErrorResult("project_slug and name are required"), nil
	}
	humanKey := p.HumanKey
	if humanKey == "" {
		humanKey = p.ProjectSlug
	}

	agent, err := t.identity.RegisterAgent(ctx, p.ProjectSlug, humanKey, p.Name, p.Program, p.Model, p.Task)
	if err != nil {
		return mcp.DomainErrorResult(err), nil
	}
	return mcp.JSONResult(map[string]any{
		"agent_id":           agent.ID,
		"project_id":         agent.ProjectID,
		"name":               agent.Name,
		"program":            agent.Program,
		"model":              agent.Model,
		"task":               agent.Task,
		"attachments_policy": agent.AttachmentsPolicy,
		"contact_policy":     agent.ContactPolicy,
		"inception_ts":       agent.InceptionTs,
		"last_active_ts":     agent.LastActiveTs,
	})
}
