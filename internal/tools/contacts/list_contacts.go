package contacts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

type listContactsParams struct {
	AgentID int64 `json:"agent_id"`
}

// ListContacts returns every outbound contact link an agent holds.
type ListContacts struct {
	contacts *domain.ContactService
}

// NewListContacts builds the list_contacts tool.
func NewListContacts(c *domain.ContactService) *ListContacts {
	return &ListContacts{contacts: c}
}

func (t *ListContacts) Name() string { return "list_contacts" }

func (t *ListContacts) Description() string {
	return "List every outbound contact link an agent has requested, with its current status (pending, approved, blocked)."
}

func (t *ListContacts) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "agent_id": {"type": "integer"}
  },
  "required": ["agent_id"]
}`)
}

func (t *ListContacts) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p listContactsParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	links, err := t.contacts.ListContacts(ctx, p.AgentID)
	if err != nil {
		return mcp.DomainErrorResult(err), nil
	}
	out := make([]map[string]any, 0, len(links))
	for _, l := range links {
		out = append(out, contactLinkJSON(&l))
	}
	return mcp.JSONResult(map[string]any{"contacts": out})
}
