// Package workflow implements the workflow_macros tool cluster:
// macro_start_session, macro_prepare_thread, macro_file_reservation_cycle,
// and macro_contact_handshake.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

type macroStartSessionParams struct {
	ProjectSlug string `json:"project_slug"`
	HumanKey    string `json:"human_key,omitempty"`
	AgentName   string `json:"agent_name"`
	Program     string `json:"program,omitempty"`
	Model       string `json:"model,omitempty"`
	Task        string `json:"task,omitempty"`
}

// MacroStartSession ensures the project and agent identity exist and
// returns the agent's current unread inbox in one round trip.
type MacroStartSession struct {
	macros *domain.Macros
}

// NewMacroStartSession builds the macro_start_session tool.
func NewMacroStartSession(m *domain.Macros) *MacroStartSession {
	return &MacroStartSession{macros: m}
}

func (t *MacroStartSession) Name() string { return "macro_start_session" }

func (t *MacroStartSession) Description() string {
	return "Ensure a project and agent identity exist, then return the agent's current unread inbox. The first call a newly started agent should make."
}

func (t *MacroStartSession) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "human_key": {"type": "string"},
    "agent_name": {"type": "string"},
    "program": {"type": "string"},
    "model": {"type": "string"},
    "task": {"type": "string"}
  },
  "required": ["project_slug", "agent_name"]
}`)
}

func (t *MacroStartSession) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p macroStartSessionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	humanKey := p.HumanKey
	if humanKey == "" {
		humanKey = p.ProjectSlug
	}

	result, err := t.macros.StartSession(ctx, p.ProjectSlug, humanKey, p.AgentName, p.Program, p.Model, p.Task)
	if err != nil {
		return mcp.DomainErrorResult(err), nil
	}

	inbox := make([]map[string]any, 0, len(result.Inbox))
	for _, it := range result.Inbox {
		inbox = append(inbox, map[string]any{
			"message_id": it.Message.ID,
			"thread_id":  it.Message.ThreadID,
			"subject":    it.Message.Subject,
			"importance": it.Message.Importance,
			"created_ts": it.Message.CreatedTs,
			"kind":       it.Kind,
		})
	}
	return mcp.JSONResult(map[string]any{
		"project_id": result.Project.ID,
		"agent_id":   result.Agent.ID,
		"agent_name": result.Agent.Name,
		"inbox":      inbox,
	})
}
