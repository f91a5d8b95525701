package contacts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

type setContactPolicyParams struct {
	AgentID int64  `json:"agent_id"`
	Policy  string `json:"policy"`
}

// SetContactPolicy updates an agent's default contact admission policy and
// re-projects its profile to the archive so the on-disk copy stays current.
type SetContactPolicy struct {
	contacts *domain.ContactService
	identity *domain.IdentityService
}

// NewSetContactPolicy builds the set_contact_policy tool.
func NewSetContactPolicy(c *domain.ContactService, id *domain.IdentityService) *SetContactPolicy {
	return &SetContactPolicy{contacts: c, identity: id}
}

func (t *SetContactPolicy) Name() string { return "set_contact_policy" }

func (t *SetContactPolicy) Description() string {
	return "Set an agent's default contact admission policy: auto (admit everyone), contacts_only (require an approved link), or block_all."
}

func (t *SetContactPolicy) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "agent_id": {"type": "integer"},
    "policy": {"type": "string", "enum": ["auto", "contacts_only", "block_all"]}
  },
  "required": ["agent_id", "policy"]
}`)
}

func (t *SetContactPolicy) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p setContactPolicyParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	if err := t.contacts.SetContactPolicy(ctx, p.AgentID, p.Policy); err != nil {
		return mcp.DomainErrorResult(err), nil
	}
	if t.identity != nil {
		_ = t.identity.ReArchiveProfile(ctx, p.AgentID)
	}
	return mcp.JSONResult(map[string]any{"ok": true, "policy": p.Policy})
}
