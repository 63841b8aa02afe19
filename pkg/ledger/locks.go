package ledger

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	cferrors "github.com/crewforge/crewforge/pkg/errors"
)

// AcquireLock grants owner exclusive ownership of path. Re-acquiring a
// lock the owner already holds succeeds and refreshes the timestamp.
// A lock held by another agent yields a CodeLockHeld error.
func (h *Hub) AcquireLock(path, owner string) error {
	if path == "" || owner == "" {
		return cferrors.New(cferrors.CodeInvalidInput, "lock needs path and owner", nil)
	}
	return h.update("acquire_lock", func(doc *Document) error {
		if cur, ok := doc.FileLocks[path]; ok && cur.Owner != owner {
			return cferrors.New(cferrors.CodeLockHeld,
				fmt.Sprintf("%s is locked by %s", path, cur.Owner), nil).
				WithAttribute("path", path).
				WithAttribute("holder", cur.Owner)
		}
		doc.FileLocks[path] = FileLock{Owner: owner, AcquiredAt: h.now().UTC()}
		return nil
	})
}

// ReleaseLock removes owner's lock on path. Releasing a lock held by
// someone else fails with CodeNotOwner; releasing an unlocked path
// fails with CodeNotFound.
func (h *Hub) ReleaseLock(path, owner string) error {
	return h.update("release_lock", func(doc *Document) error {
		cur, ok := doc.FileLocks[path]
		if !ok {
			return cferrors.New(cferrors.CodeNotFound,
				fmt.Sprintf("%s is not locked", path), nil)
		}
		if cur.Owner != owner {
			return cferrors.New(cferrors.CodeNotOwner,
				fmt.Sprintf("%s is locked by %s, not %s", path, cur.Owner, owner), nil)
		}
		delete(doc.FileLocks, path)
		return nil
	})
}

// LockHolder reports who holds the lock on path, if anyone.
func (h *Hub) LockHolder(path string) (string, bool, error) {
	var (
		owner string
		held  bool
	)
	err := h.view(func(doc *Document) {
		if cur, ok := doc.FileLocks[path]; ok {
			owner, held = cur.Owner, true
		}
	})
	return owner, held, err
}

// RequestLock files a pending lock request for the lock manager to
// decide. A second pending request by the same agent for the same path
// returns the existing request instead of duplicating it.
func (h *Hub) RequestLock(agent, path, reason string) (LockRequest, error) {
	if agent == "" || path == "" {
		return LockRequest{}, cferrors.New(cferrors.CodeInvalidInput, "lock request needs agent and path", nil)
	}
	var req LockRequest
	err := h.update("request_lock", func(doc *Document) error {
		for _, r := range doc.LockRequests {
			if r.Agent == agent && r.Path == path && r.Status == RequestPending {
				req = r
				return nil
			}
		}
		req = LockRequest{
			ID:          uuid.NewString(),
			Agent:       agent,
			Path:        path,
			Reason:      reason,
			Status:      RequestPending,
			RequestedAt: h.now().UTC(),
		}
		doc.LockRequests = append(doc.LockRequests, req)
		return nil
	})
	if err != nil {
		return LockRequest{}, err
	}
	return req, nil
}

// LockRequest returns a request by ID.
func (h *Hub) LockRequest(id string) (LockRequest, bool, error) {
	var (
		req   LockRequest
		found bool
	)
	err := h.view(func(doc *Document) {
		for _, r := range doc.LockRequests {
			if r.ID == id {
				req, found = r, true
				return
			}
		}
	})
	return req, found, err
}

// PendingLockRequests returns requests still awaiting a decision,
// oldest first.
func (h *Hub) PendingLockRequests() ([]LockRequest, error) {
	var out []LockRequest
	err := h.view(func(doc *Document) {
		out = doc.PendingRequests()
	})
	return out, err
}

// ApproveLockRequest approves a pending request and grants the lock.
// If the path is locked by another agent the request stays pending and
// a CodeLockHeld error is returned, so the manager can retry or deny.
func (h *Hub) ApproveLockRequest(id, decision string) error {
	err := h.update("approve_request", func(doc *Document) error {
		return h.decide(doc, id, RequestApproved, decision)
	})
	if err != nil {
		return err
	}
	h.logger.Info("ledger.lock.approved", slog.String("request_id", id))
	return nil
}

// DenyLockRequest denies a pending request with a reason.
func (h *Hub) DenyLockRequest(id, reason string) error {
	err := h.update("deny_request", func(doc *Document) error {
		return h.decide(doc, id, RequestDenied, reason)
	})
	if err != nil {
		return err
	}
	h.logger.Info("ledger.lock.denied",
		slog.String("request_id", id),
		slog.String("reason", reason),
	)
	return nil
}

// ApproveAllPending approves every pending request whose path is free
// or already owned by the requester, and reports how many were
// granted. Requests for contested paths are left pending.
func (h *Hub) ApproveAllPending(decision string) (int, error) {
	granted := 0
	err := h.update("approve_all", func(doc *Document) error {
		for i := range doc.LockRequests {
			r := &doc.LockRequests[i]
			if r.Status != RequestPending {
				continue
			}
			if cur, ok := doc.FileLocks[r.Path]; ok && cur.Owner != r.Agent {
				continue
			}
			now := h.now().UTC()
			r.Status = RequestApproved
			r.Decision = decision
			r.DecidedAt = &now
			doc.FileLocks[r.Path] = FileLock{Owner: r.Agent, AcquiredAt: now}
			granted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return granted, nil
}

// decide flips a pending request to status and, on approval, installs
// the lock. Callers run inside an update.
func (h *Hub) decide(doc *Document, id string, status RequestStatus, note string) error {
	for i := range doc.LockRequests {
		r := &doc.LockRequests[i]
		if r.ID != id {
			continue
		}
		if r.Status != RequestPending {
			return cferrors.New(cferrors.CodeInvalidInput,
				fmt.Sprintf("request %s already %s", id, r.Status), nil)
		}
		if status == RequestApproved {
			if cur, ok := doc.FileLocks[r.Path]; ok && cur.Owner != r.Agent {
				return cferrors.New(cferrors.CodeLockHeld,
					fmt.Sprintf("%s is locked by %s", r.Path, cur.Owner), nil)
			}
			doc.FileLocks[r.Path] = FileLock{Owner: r.Agent, AcquiredAt: h.now().UTC()}
		}
		now := h.now().UTC()
		r.Status = status
		r.Decision = note
		r.DecidedAt = &now
		return nil
	}
	return cferrors.New(cferrors.CodeNotFound,
		fmt.Sprintf("lock request %s not found", id), nil)
}

// ExpireLocks releases locks older than ttl and returns the released
// paths. A ttl of zero disables expiry.
func (h *Hub) ExpireLocks(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		return nil, nil
	}
	var released []string
	err := h.update("expire_locks", func(doc *Document) error {
		cutoff := h.now().UTC().Add(-ttl)
		for path, lock := range doc.FileLocks {
			if lock.AcquiredAt.Before(cutoff) {
				delete(doc.FileLocks, path)
				released = append(released, path)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, path := range released {
		h.logger.Warn("ledger.lock.expired", slog.String("path", path))
	}
	return released, nil
}

// ExpireRequests marks pending requests older than ttl as expired and
// returns how many were aged out. A ttl of zero disables expiry.
func (h *Hub) ExpireRequests(ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	expired := 0
	err := h.update("expire_requests", func(doc *Document) error {
		cutoff := h.now().UTC().Add(-ttl)
		for i := range doc.LockRequests {
			r := &doc.LockRequests[i]
			if r.Status == RequestPending && r.RequestedAt.Before(cutoff) {
				now := h.now().UTC()
				r.Status = RequestExpired
				r.Decision = "expired without a decision"
				r.DecidedAt = &now
				expired++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return expired, nil
}
