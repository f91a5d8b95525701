package domain

import (
	"context"
	"time"

	"github.com/agentmail/agentmail/internal/store"
)

// BuildSlotService implements the named mutual-exclusion slots agents use
// to serialize expensive shared operations (a CI run, a migration) without
// modeling them as path reservations.
type BuildSlotService struct {
	store *store.Store
}

// NewBuildSlotService builds a BuildSlotService.
func NewBuildSlotService(st *store.Store) *BuildSlotService {
	return &BuildSlotService{store: st}
}

// AcquireBuildSlot grants slotName in projectID to agentID for ttl, or
// returns domain.ResourceBusy if another agent currently holds it and that
// hold has not expired.
func (b *BuildSlotService) AcquireBuildSlot(ctx context.Context, projectID, agentID int64, slotName string, ttl time.Duration) (*store.BuildSlot, error) {
	if slotName == "" {
		return nil, InvalidArgument("slot_name", "must not be empty")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	now := b.store.Now()
	return b.store.AcquireBuildSlot(ctx, projectID, slotName, agentID, now, now+uint64(ttl.Microseconds()))
}

// RenewBuildSlot extends agentID's hold on slotName by ttl from now.
// NotFound if agentID is not the current holder.
func (b *BuildSlotService) RenewBuildSlot(ctx context.Context, projectID, agentID int64, slotName string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return b.store.RenewBuildSlot(ctx, projectID, slotName, agentID, b.store.Now()+uint64(ttl.Microseconds()))
}

// ReleaseBuildSlot releases agentID's hold on slotName. NotFound if agentID
// is not the current holder.
func (b *BuildSlotService) ReleaseBuildSlot(ctx context.Context, projectID, agentID int64, slotName string) error {
	return b.store.ReleaseBuildSlot(ctx, projectID, slotName, agentID)
}

// GetBuildSlot returns the current holder of slotName, if any.
func (b *BuildSlotService) GetBuildSlot(ctx context.Context, projectID int64, slotName string) (*store.BuildSlot, error) {
	return b.store.GetBuildSlot(ctx, projectID, slotName)
}
