// Package contacts implements the contacts tool cluster: request_contact,
// respond_contact, list_contacts, and set_contact_policy.
package contacts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
	"github.com/agentmail/agentmail/internal/store"
)

func contactLinkJSON(l *store.ContactLink) map[string]any {
	return map[string]any{
		"src_agent_id": l.SrcAgentID,
		"dst_agent_id": l.DstAgentID,
		"status":       l.Status,
		"reason":       l.Reason,
		"updated_ts":   l.UpdatedTs,
	}
}

type requestContactParams struct {
	SrcAgentID int64  `json:"src_agent_id"`
	DstAgentID int64  `json:"dst_agent_id"`
	Reason     string `json:"reason,omitempty"`
}

// RequestContact creates or refreshes a directed contact request.
type RequestContact struct {
	contacts *domain.ContactService
}

// NewRequestContact builds the request_contact tool.
func NewRequestContact(c *domain.ContactService) *RequestContact {
	return &RequestContact{contacts: c}
}

func (t *RequestContact) Name() string { return "request_contact" }

func (t *RequestContact) Description() string {
	return "Request a directed contact link from one agent to another. A new pair starts pending; a blocked pair resets to pending."
}

func (t *RequestContact) InputSchema() json.RawMessage {
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

func (t *RequestContact) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p requestContactParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	link, err := t.contacts.RequestContact(ctx, p.SrcAgentID, p.DstAgentID, p.Reason)
	if err != nil {
		return mcp.DomainErrorResult(err), nil
	}
	return mcp.JSONResult(contactLinkJSON(link))
}
