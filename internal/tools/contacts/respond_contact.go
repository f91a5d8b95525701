package contacts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

type respondContactParams struct {
	RespondingAgentID int64  `json:"responding_agent_id"`
	SrcAgentID        int64  `json:"src_agent_id"`
	Accept            bool   `json:"accept"`
	Reason            string `json:"reason,omitempty"`
}

// RespondContact answers a pending inbound contact request.
type RespondContact struct {
	contacts *domain.ContactService
}

// NewRespondContact builds the respond_contact tool.
func NewRespondContact(c *domain.ContactService) *RespondContact {
	return &RespondContact{contacts: c}
}

func (t *RespondContact) Name() string { return "respond_contact" }

func (t *RespondContact) Description() string {
	return "Accept or block a pending inbound contact request from another agent."
}

func (t *RespondContact) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "responding_agent_id": {"type": "integer"},
    "src_agent_id": {"type": "integer", "description": "The requesting agent"},
    "accept": {"type": "boolean"},
    "reason": {"type": "string"}
  },
  "required": ["responding_agent_id", "src_agent_id", "accept"]
}`)
}

func (t *RespondContact) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p respondContactParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	link, err := t.contacts.RespondContact(ctx, p.RespondingAgentID, p.SrcAgentID, p.Accept, p.Reason)
	if err != nil {
		return mcp.DomainErrorResult(err), nil
	}
	return mcp.JSONResult(contactLinkJSON(link))
}
