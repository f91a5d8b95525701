package infra

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/mcp"
	"github.com/agentmail/agentmail/internal/store"
)

type ensureProjectParams struct {
	ProjectSlug string `json:"project_slug"`
	HumanKey    string `json:"human_key,omitempty"`
}

// EnsureProject creates (or returns) the project identified by
// project_slug, the first call every agent session makes.
type EnsureProject struct {
	store *store.Store
}

// NewEnsureProject builds an EnsureProject tool.
func NewEnsureProject(st *store.Store) *EnsureProject {
	return &EnsureProject{store: st}
}

func (t *EnsureProject) Name() string { return "ensure_project" }

func (t *EnsureProject) Description() string {
	return "Create a project if it doesn't already exist, identified by a slug, and return its id. Idempotent."
}

func (t *EnsureProject) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string", "description": "Stable slug identifying the project"},
    "human_key": {"type": "string", "description": "Human-readable label (e.g. repository path); defaults to project_slug"}
  },
  "required": ["project_slug"]
}`)
}

func (t *EnsureProject) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p ensureProjectParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.ProjectSlug == "" {
		return mcp.ErrorResult("project_slug is required"), nil
	}
	humanKey := p.HumanKey
	if humanKey == "" {
		humanKey = p.ProjectSlug
	}

	proj, err := t.store.EnsureProject(ctx, p.ProjectSlug, humanKey)
	if err != nil {
		return mcp.DomainErrorResult(err), nil
	}
	return mcp.JSONResult(map[string]any{
		"project_id":   proj.ID,
		"project_slug": proj.Slug,
		"human_key":    proj.HumanKey,
		"created_ts":   proj.CreatedTs,
	})
}
