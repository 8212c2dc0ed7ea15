package assetregistry

import (
	"sync"

	"github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/base/log"
	"github.com/x-xyz/tradeengine/domain"
)

// InMemRegistry is the reference implementation of the asset-holding
// boundary. It tracks exactly one owner per asset and performs the
// operator-approval check itself; the engine never reimplements it.
type InMemRegistry struct {
	mu        sync.Mutex
	operator  domain.Address
	owners    map[string]domain.Address
	approvals map[domain.Address]map[domain.Address]bool
}

// New creates a registry whose privileged operator is the engine identity.
func New(operator domain.Address) *InMemRegistry {
	return &InMemRegistry{
		operator:  operator.ToLower(),
		owners:    map[string]domain.Address{},
		approvals: map[domain.Address]map[domain.Address]bool{},
	}
}

func (r *InMemRegistry) OwnerOf(c ctx.Ctx, id domain.AssetId) (domain.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[id.Key()]
	if !ok {
		return "", domain.ErrNotFound
	}
	return owner, nil
}

func (r *InMemRegistry) TransferOwnership(c ctx.Ctx, from, to domain.Address, id domain.AssetId) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[id.Key()]
	if !ok || !owner.Equals(from) {
		c.WithFields(log.Fields{
			"asset": id,
			"from":  from,
			"owner": owner,
		}).Warn("ownership transfer rejected")
		return domain.ErrTransferFailed
	}
	// the engine may move assets it holds; moving a user's asset requires
	// that user's operator approval
	if !from.Equals(r.operator) && !r.approvals[from.ToLower()][r.operator] {
		return domain.ErrTransferFailed
	}
	r.owners[id.Key()] = to.ToLower()
	return nil
}

// Mint assigns an asset to an owner. Seeding surface for tests and fixtures.
func (r *InMemRegistry) Mint(c ctx.Ctx, owner domain.Address, id domain.AssetId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[id.Key()] = owner.ToLower()
}

// SetApproval grants or revokes the engine operator's right to move owner's
// assets.
func (r *InMemRegistry) SetApproval(c ctx.Ctx, owner domain.Address, approved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.approvals[owner.ToLower()] == nil {
		r.approvals[owner.ToLower()] = map[domain.Address]bool{}
	}
	r.approvals[owner.ToLower()][r.operator] = approved
}
