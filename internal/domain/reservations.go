package domain

import (
	"context"
	"time"

	"github.com/agentmail/agentmail/internal/pattern"
	"github.com/agentmail/agentmail/internal/store"
)

// ReservationService implements exclusive path-reservation coordination:
// reserve_paths, release_file_reservations, renew_file_reservations, and
// list_file_reservations. Overlap decisions are delegated to
// internal/pattern; the store layer only provides the BEGIN IMMEDIATE
// transaction boundary that makes each check-then-insert atomic.
type ReservationService struct {
	store   *store.Store
	archive ArchiveEnqueuer
}

// NewReservationService builds a ReservationService. archive may be nil,
// in which case grants and releases are not archived (tests only).
func NewReservationService(st *store.Store, archive ArchiveEnqueuer) *ReservationService {
	if archive == nil {
		archive = noopArchive{}
	}
	return &ReservationService{store: st, archive: archive}
}

// ReserveGrant describes one path pattern that was successfully reserved
// (or renewed, if it matched an existing reservation held by the same
// agent).
type ReserveGrant struct {
	Pattern   string
	ID        int64
	ExpiresTs *uint64
	Renewed   bool
}

// ReserveConflict describes one path pattern that could not be reserved
// because it overlaps an exclusive reservation held by another agent.
type ReserveConflict struct {
	Pattern       string
	HolderName    string
	HolderAgentID int64
	ExpiresTs     *uint64
}

// ReserveResult is the outcome of ReservePaths: every requested pattern
// resolves to either a grant or a conflict, never both and never neither.
type ReserveResult struct {
	Granted   []ReserveGrant
	Conflicts []ReserveConflict
}

// ReservePaths attempts to reserve every pattern in paths for agentID
// within projectID. Each pattern is evaluated independently: a renewal
// (same holder, same normalized pattern, same exclusivity) updates the
// existing reservation's expiry; otherwise a fresh reservation is granted
// unless it overlaps an exclusive reservation held by a different agent, in
// which case that one pattern is reported as a conflict and the rest of
// the call still proceeds (partial success — invariant 3 only forbids
// cross-agent overlap among exclusive reservations, never an all-or-nothing
// batch).
func (r *ReservationService) ReservePaths(ctx context.Context, projectID, agentID int64, paths []string,
	exclusive bool, reason string, ttl time.Duration) (*ReserveResult, error) {

	if len(paths) == 0 {
		return nil, InvalidArgument("paths", "at least one path pattern is required")
	}

	result := &ReserveResult{}
	for _, raw := range paths {
		norm := pattern.Normalize(raw)
		nowUs := r.store.Now()
		var expiresTs *uint64
		if ttl > 0 {
			e := nowUs + uint64(ttl.Microseconds())
			expiresTs = &e
		}

		active, err := r.store.ListActiveReservations(ctx, projectID, nowUs)
		if err != nil {
			return nil, err
		}

		if renewID, renewExpires, ok := findRenewal(active, agentID, norm, exclusive); ok {
			renewNow := expiresTs
			if renewNow == nil {
				renewNow = renewExpires
			}
			var newExp uint64
			if renewNow != nil {
				newExp = *renewNow
			}
			if _, err := r.store.RenewReservations(ctx, agentID, []int64{renewID}, newExp); err != nil {
				return nil, err
			}
			result.Granted = append(result.Granted, ReserveGrant{Pattern: norm, ID: renewID, ExpiresTs: renewNow, Renewed: true})
			r.archiveGrant(ctx, projectID, agentID, renewID, norm, exclusive, reason, renewNow)
			continue
		}

		var conflictAgentID int64 = -1
		var conflictExpires *uint64
		id, err := r.store.ReserveWithCheck(ctx, projectID, store.NewReservation{
			AgentID: agentID, Pattern: norm, Exclusive: exclusive, Reason: reason, ExpiresTs: expiresTs,
		}, nowUs, func(active []store.ActiveReservation) error {
			for _, a := range active {
				if a.Exclusive && a.AgentID != agentID && pattern.Overlaps(a.Pattern, norm) {
					conflictAgentID = a.AgentID
					conflictExpires = a.ExpiresTs
					return ResourceBusy("path reservation conflict: " + norm)
				}
			}
			return nil
		})
		if err != nil {
			de := AsError(err)
			if de.Kind == KindResourceBusy && conflictAgentID >= 0 {
				holderName := ""
				if holder, hErr := r.store.GetAgentByID(ctx, conflictAgentID); hErr == nil {
					holderName = holder.Name
				}
				result.Conflicts = append(result.Conflicts, ReserveConflict{
					Pattern: norm, HolderName: holderName, HolderAgentID: conflictAgentID, ExpiresTs: conflictExpires,
				})
				continue
			}
			return nil, err
		}
		result.Granted = append(result.Granted, ReserveGrant{Pattern: norm, ID: id, ExpiresTs: expiresTs})
		r.archiveGrant(ctx, projectID, agentID, id, norm, exclusive, reason, expiresTs)
	}
	return result, nil
}

// archiveGrant resolves the project slug and holder name outside of any
// open transaction and enqueues the reservation's current state. Archive
// writes are best-effort: a lookup failure here never fails the grant
// itself, since the relational store already committed it.
func (r *ReservationService) archiveGrant(ctx context.Context, projectID, agentID, reservationID int64, pattern string, exclusive bool, reason string, expiresTs *uint64) {
	proj, err := r.store.GetProjectByID(ctx, projectID)
	if err != nil {
		return
	}
	holder, err := r.store.GetAgentByID(ctx, agentID)
	if err != nil {
		return
	}
	r.archive.EnqueueReservation(ArchiveReservationRecord{
		ProjectSlug: proj.Slug, ID: reservationID, HolderName: holder.Name,
		Pattern: pattern, Exclusive: exclusive, Reason: reason, ExpiresTs: expiresTs,
	})
}

func findRenewal(active []store.ActiveReservation, agentID int64, norm string, exclusive bool) (id int64, expires *uint64, ok bool) {
	for _, a := range active {
		if a.AgentID == agentID && a.Exclusive == exclusive && pattern.Normalize(a.Pattern) == norm {
			return a.ID, a.ExpiresTs, true
		}
	}
	return 0, nil, false
}

// ReleaseFileReservations releases agentID's reservations in projectID. An
// empty paths list releases every active reservation agentID holds in the
// project; a non-empty list releases only the ones whose normalized
// pattern exactly matches one of paths. Releasing an id owned by another
// agent is silently a no-op (ownership is enforced by the store layer).
func (r *ReservationService) ReleaseFileReservations(ctx context.Context, projectID, agentID int64, paths []string) (int, error) {
	ids, err := r.resolveOwnedIDs(ctx, projectID, agentID, paths)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := r.store.ReleaseReservations(ctx, agentID, ids, r.store.Now())
	if err == nil {
		if proj, pErr := r.store.GetProjectByID(ctx, projectID); pErr == nil {
			holder, _ := r.store.GetAgentByID(ctx, agentID)
			holderName := ""
			if holder != nil {
				holderName = holder.Name
			}
			for _, id := range ids {
				r.archive.EnqueueReservation(ArchiveReservationRecord{
					ProjectSlug: proj.Slug, ID: id, HolderName: holderName, Released: true,
				})
			}
		}
	}
	return n, err
}

// RenewFileReservations extends the expiry of agentID's matching
// reservations by ttl from now. Same path-matching semantics as
// ReleaseFileReservations.
func (r *ReservationService) RenewFileReservations(ctx context.Context, projectID, agentID int64, paths []string, ttl time.Duration) (int, error) {
	ids, err := r.resolveOwnedIDs(ctx, projectID, agentID, paths)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	newExpires := r.store.Now() + uint64(ttl.Microseconds())
	return r.store.RenewReservations(ctx, agentID, ids, newExpires)
}

func (r *ReservationService) resolveOwnedIDs(ctx context.Context, projectID, agentID int64, paths []string) ([]int64, error) {
	active, err := r.store.ListActiveReservations(ctx, projectID, r.store.Now())
	if err != nil {
		return nil, err
	}
	var normPaths map[string]bool
	if len(paths) > 0 {
		normPaths = make(map[string]bool, len(paths))
		for _, p := range paths {
			normPaths[pattern.Normalize(p)] = true
		}
	}
	var ids []int64
	for _, a := range active {
		if a.AgentID != agentID {
			continue
		}
		if normPaths != nil && !normPaths[pattern.Normalize(a.Pattern)] {
			continue
		}
		ids = append(ids, a.ID)
	}
	return ids, nil
}

// ListFileReservations returns every active reservation in projectID,
// across all agents — the read-only view used by list_file_reservations
// and by other agents' own ReservePaths overlap checks.
func (r *ReservationService) ListFileReservations(ctx context.Context, projectID int64) ([]store.ActiveReservation, error) {
	return r.store.ListActiveReservations(ctx, projectID, r.store.Now())
}
