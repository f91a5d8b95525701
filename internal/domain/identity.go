package domain

import (
	"context"

	"github.com/agentmail/agentmail/internal/store"
)

// IdentityService implements agent registration and the heartbeat/whois
// surface: resolving or creating the owning project, registering a new
// agent identity, and projecting the resulting profile to the archive.
type IdentityService struct {
	store   *store.Store
	archive ArchiveEnqueuer
}

// NewIdentityService builds an IdentityService. archive may be nil, in
// which case profiles are not archived (tests only).
func NewIdentityService(st *store.Store, archive ArchiveEnqueuer) *IdentityService {
	if archive == nil {
		archive = noopArchive{}
	}
	return &IdentityService{store: st, archive: archive}
}

// RegisterAgent ensures projectSlug exists and registers a new agent within
// it, defaulting attachments_policy and contact_policy to "auto". Fails
// with Duplicate if name is already taken in that project.
func (id *IdentityService) RegisterAgent(ctx context.Context, projectSlug, projectHumanKey, name, program, model, task string) (*store.Agent, error) {
	proj, err := id.store.EnsureProject(ctx, projectSlug, projectHumanKey)
	if err != nil {
		return nil, err
	}
	agent, err := id.store.RegisterAgent(ctx, proj.ID, name, program, model, task)
	if err != nil {
		return nil, err
	}
	id.archive.EnqueueAgentProfile(ArchiveAgentProfileRecord{
		ProjectSlug: proj.Slug, Name: agent.Name, Program: agent.Program, Model: agent.Model,
		Task: agent.Task, AttachmentsPolicy: agent.AttachmentsPolicy, ContactPolicy: agent.ContactPolicy,
		InceptionTs: agent.InceptionTs, LastActiveTs: agent.LastActiveTs,
	})
	return agent, nil
}

// Whois looks up an agent by (projectSlug, name). It is read-only: the
// agent's last-active timestamp is left unchanged (Heartbeat updates it).
func (id *IdentityService) Whois(ctx context.Context, projectSlug, name string) (*store.Agent, error) {
	proj, err := id.store.GetProjectBySlug(ctx, projectSlug)
	if err != nil {
		return nil, err
	}
	agent, err := id.store.GetAgentByName(ctx, proj.ID, name)
	if err != nil {
		return nil, err
	}
	return agent, nil
}

// Heartbeat touches an agent's last_active_ts and re-archives its profile,
// so the on-disk copy's last_active_ts eventually converges with the
// store's.
func (id *IdentityService) Heartbeat(ctx context.Context, agentID int64) error {
	if err := id.store.TouchLastActive(ctx, agentID, id.store.Now()); err != nil {
		return err
	}
	agent, err := id.store.GetAgentByID(ctx, agentID)
	if err != nil {
		return err
	}
	proj, err := id.store.GetProjectByID(ctx, agent.ProjectID)
	if err != nil {
		return err
	}
	id.archive.EnqueueAgentProfile(ArchiveAgentProfileRecord{
		ProjectSlug: proj.Slug, Name: agent.Name, Program: agent.Program, Model: agent.Model,
		Task: agent.Task, AttachmentsPolicy: agent.AttachmentsPolicy, ContactPolicy: agent.ContactPolicy,
		InceptionTs: agent.InceptionTs, LastActiveTs: agent.LastActiveTs,
	})
	return nil
}

// ReArchiveProfile re-projects agentID's current profile to the archive.
// Called after any update that changes archived profile fields but isn't
// itself owned by IdentityService (e.g. ContactService.SetContactPolicy).
func (id *IdentityService) ReArchiveProfile(ctx context.Context, agentID int64) error {
	agent, err := id.store.GetAgentByID(ctx, agentID)
	if err != nil {
		return err
	}
	proj, err := id.store.GetProjectByID(ctx, agent.ProjectID)
	if err != nil {
		return err
	}
	id.archive.EnqueueAgentProfile(ArchiveAgentProfileRecord{
		ProjectSlug: proj.Slug, Name: agent.Name, Program: agent.Program, Model: agent.Model,
		Task: agent.Task, AttachmentsPolicy: agent.AttachmentsPolicy, ContactPolicy: agent.ContactPolicy,
		InceptionTs: agent.InceptionTs, LastActiveTs: agent.LastActiveTs,
	})
	return nil
}
