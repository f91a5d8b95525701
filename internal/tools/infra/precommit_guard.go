package infra

import (
	"context"
	"encoding/json"

	"github.com/agentmail/agentmail/internal/mcp"
)

// InstallPrecommitGuard and UninstallPrecommitGuard are record-only stubs:
// precommit-guard installation is an operator CLI concern, not something
// this server touches on the filesystem. They exist purely to keep the
// 34-tool surface stable for clients that already call them.

type InstallPrecommitGuard struct{}

func NewInstallPrecommitGuard() *InstallPrecommitGuard { return &InstallPrecommitGuard{} }

func (t *InstallPrecommitGuard) Name() string { return "install_precommit_guard" }

func (t *InstallPrecommitGuard) Description() string {
	return "No-op: precommit guard installation is managed by the operator CLI, not this server. Reports installed:false."
}

func (t *InstallPrecommitGuard) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func (t *InstallPrecommitGuard) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	return mcp.JSONResult(map[string]any{
		"installed": false,
		"reason":    "precommit guard installation is managed by the operator CLI, not this server",
	})
}

type UninstallPrecommitGuard struct{}

func NewUninstallPrecommitGuard() *UninstallPrecommitGuard { return &UninstallPrecommitGuard{} }

func (t *UninstallPrecommitGuard) Name() string { return "uninstall_precommit_guard" }

func (t *UninstallPrecommitGuard) Description() string {
	return "No-op: precommit guard installation is managed by the operator CLI, not this server. Reports installed:false."
}

func (t *UninstallPrecommitGuard) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func (t *UninstallPrecommitGuard) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	return mcp.JSONResult(map[string]any{
		"installed": false,
		"reason":    "precommit guard installation is managed by the operator CLI, not this server",
	})
}
