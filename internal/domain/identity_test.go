package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentityRegisterAndWhois(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	agent, err := ts.identity.RegisterAgent(ctx, "identity-proj", "/tmp/identity", "RedFox", "claude-code", "sonnet", "coordination testing")
	require.NoError(t, err)
	require.Equal(t, "RedFox", agent.Name)
	require.Equal(t, "auto", agent.AttachmentsPolicy)
	require.Equal(t, "auto", agent.ContactPolicy)

	found, err := ts.identity.Whois(ctx, "identity-proj", "RedFox")
	require.NoError(t, err)
	require.Equal(t, agent.ID, found.ID)
}

func TestIdentityRegisterDuplicateFails(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	_, err := ts.identity.RegisterAgent(ctx, "identity-proj2", "/tmp/identity2", "BlueLake", "claude-code", "sonnet", "t")
	require.NoError(t, err)
	_, err = ts.identity.RegisterAgent(ctx, "identity-proj2", "/tmp/identity2", "BlueLake", "claude-code", "sonnet", "t")
	require.Error(t, err)
	require.Equal(t, KindDuplicate, AsError(err).Kind)
}

func TestIdentityHeartbeatTouchesLastActive(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	agent, err := ts.identity.RegisterAgent(ctx, "identity-proj3", "/tmp/identity3", "GoldPeak", "claude-code", "sonnet", "t")
	require.NoError(t, err)
	before := agent.LastActiveTs

	require.NoError(t, ts.identity.Heartbeat(ctx, agent.ID))

	after, err := ts.store.GetAgentByID(ctx, agent.ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, after.LastActiveTs, before)
}
