package identity

import "github.com/agentmail/agentmail/internal/domain"

// CreateAgentIdentity is register_agent under its newer name. Both tool
// names are contract-locked on the 34-tool surface; create_agent_identity
// is the preferred spelling going forward, register_agent kept for
// clients that haven't migrated.
type CreateAgentIdentity struct {
	*RegisterAgent
}

// NewCreateAgentIdentity builds the create_agent_identity tool.
func NewCreateAgentIdentity(id *domain.IdentityService) *CreateAgentIdentity {
	return &CreateAgentIdentity{RegisterAgent: &RegisterAgent{identity: id, toolName: "create_agent_identity"}}
}

func (t *CreateAgentIdentity) Description() string {
	return "Create a new agent identity within a project (created if absent). Returns the agent's id and default attachments/contact policies."
}
