package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

type macroContactHandshakeParams struct {
	SrcAgentID int64  `json:"src_agent_id"`
	DstAgentID int64  `json:"dst_agent_id"`
	Reason     string `json:"reason,omitempty"`
}

// MacroContactHandshake issues a contact request and returns both the
// resulting link and the requester's full contact list.
type MacroContactHandshake struct {
	macros *domain.Macros
}

// NewMacroContactHandshake builds the macro_contact_handshake tool.
func NewMacroContactHandshake(m *domain.Macros) *MacroContactHandshake {
	return &MacroContactHandshake{macros: m}
}

func (t *MacroContactHandshake) Name() string { return "macro_contact_handshake" }

func (t *MacroContactHandshake) Description() string {
	return "Request a contact link and return both the resulting link and the requester's full contact list, so the caller sees where this request landed relative to its other links."
}

func (t *MacroContactHandshake) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "src_agent_id": {"type": "integer"},
    "dst_agent_id": {"type": "integer"},
    "reason": {"type": "string"}
  },
  "required": ["src_agent_id", "dst_agent_id"]
}`)
}

func (t *MacroContactHandshake) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p macroContactHandshakeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	result, err := t.macros.ContactHandshake(ctx, p.SrcAgentID, p.DstAgentID, p.Reason)
	if err != nil {
		return mcp.DomainErrorResult(err), nil
	}
	links := make([]map[string]any, 0, len(result.ExistingLinks))
	for _, l := range result.ExistingLinks {
		links = append(links, map[string]any{
			"src_agent_id": l.SrcAgentID, "dst_agent_id": l.DstAgentID, "status": l.Status,
			"reason": l.Reason, "updated_ts": l.UpdatedTs,
		})
	}
	return mcp.JSONResult(map[string]any{
		"link": map[string]any{
			"src_agent_id": result.Link.SrcAgentID, "dst_agent_id": result.Link.DstAgentID,
			"status": result.Link.Status, "reason": result.Link.Reason, "updated_ts": result.Link.UpdatedTs,
		},
		"existing_links": links,
	})
}
