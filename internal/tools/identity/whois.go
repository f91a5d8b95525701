package identity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

type whoisParams struct {
	ProjectSlug string `json:"project_slug"`
	Name        string `json:"name"`
}

// Whois looks up an agent's profile by name within a project.
type Whois struct {
	identity *domain.IdentityService
}

// NewWhois builds the whois tool.
func NewWhois(id *domain.IdentityService) *Whois {
	return &Whois{identity: id}
}

func (t *Whois) Name() string { return "whois" }

func (t *Whois) Description() string {
	return "Look up an agent's profile (program, model, task, policies, last_active_ts) by name within a project."
}

func (t *Whois) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "name": {"type": "string", "description": "Agent name to look up"}
  },
  "required": ["project_slug", "name"]
}`)
}

func (t *Whois) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p whoisParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.ProjectSlug == "" || p.Name == "" {
		return mcp.ErrorResult("project_slug and name are required"), nil
	}

	agent, err := t.identity.Whois(ctx, p.ProjectSlug, p.Name)
	if err != nil {
		return mcp.DomainErrorResult(err), nil
	}
	return mcp.JSONResult(map[string]any{
		"agent_id":           agent.ID,
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
