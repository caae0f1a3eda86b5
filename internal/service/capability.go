package service

import (
	"context"

	"github.com/shopspring/decimal"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/repository"
)

// allocationRule describes one allowed (role, kind) pair. The parent is the
// actor's own wallet; the target is the child wallet named in the request.
type allocationRule struct {
	parent  func(a domain.Actor) domain.HolderRef
	target  domain.HolderType
	toChild bool
	minimum decimal.Decimal
	forWhat domain.ForWhat
}

func actorCompany(a domain.Actor) domain.HolderRef       { return domain.CompanyRef(a.CompanyID) }
func actorCompanyBranch(a domain.Actor) domain.HolderRef { return domain.CompanyBranchRef(a.CompanyBranchID) }
func actorStation(a domain.Actor) domain.HolderRef       { return domain.StationRef(a.StationID) }

var allocationRules = map[TransferKind]map[domain.Role]allocationRule{
	TransferFundBranch: {
		domain.RoleCompanyOwner: {actorCompany, domain.HolderCompanyBranch, true, domain.MinBranchTransfer, domain.ForBranch},
	},
	TransferReclaimBranch: {
		domain.RoleCompanyOwner: {actorCompany, domain.HolderCompanyBranch, false, domain.MinBranchTransfer, domain.ForBranch},
	},
	TransferFundCar: {
		domain.RoleCompanyOwner:         {actorCompany, domain.HolderCar, true, domain.MinCarTransfer, domain.ForCar},
		domain.RoleCompanyBranchManager: {actorCompanyBranch, domain.HolderCar, true, domain.MinCarTransfer, domain.ForCar},
	},
	TransferReclaimCar: {
		domain.RoleCompanyOwner:         {actorCompany, domain.HolderCar, false, domain.MinCarTransfer, domain.ForCar},
		domain.RoleCompanyBranchManager: {actorCompanyBranch, domain.HolderCar, false, domain.MinCarTransfer, domain.ForCar},
	},
	TransferFundStationBranch: {
		domain.RoleStationOwner: {actorStation, domain.HolderStationBranch, true, domain.MinBranchTransfer, ""},
	},
	TransferReclaimStationBranch: {
		domain.RoleStationOwner: {actorStation, domain.HolderStationBranch, false, domain.MinBranchTransfer, ""},
	},
}

// resolveAllocation turns an actor request into a concrete transfer. Unknown
// role/kind pairs are Forbidden; targets outside the actor's scope are NotFound.
func resolveAllocation(ctx context.Context, r *repository.Repos, actor domain.Actor, kind TransferKind, targetID int32) (TransferRequest, error) {
	rule, ok := allocationRules[kind][actor.Role]
	if !ok {
		return TransferRequest{}, domain.Fail(domain.CodeForbidden)
	}
	parent := rule.parent(actor)
	if parent.ID == 0 {
		return TransferRequest{}, domain.Fail(domain.CodeForbidden)
	}

	target := domain.HolderRef{Type: rule.target, ID: targetID}
	h, err := r.Holders.Get(ctx, target)
	if err != nil {
		return TransferRequest{}, err
	}
	if !belongsTo(h, parent) {
		return TransferRequest{}, domain.Fail(domain.CodeHolderNotFound)
	}

	req := TransferRequest{
		Minimum:    rule.minimum,
		Family:     parent.Type.Family(),
		IsIncoming: rule.toChild,
		Method:     domain.MethodInternal,
		IsInternal: true,
		ForWhat:    rule.forWhat,
		Actor:      actor,
		Category:   domain.CategoryMoney,
	}
	if rule.toChild {
		req.Source, req.Destination = parent, target
	} else {
		req.Source, req.Destination = target, parent
	}
	return req, nil
}

// belongsTo reports whether h sits under parent in the organization tree.
func belongsTo(h *domain.Holder, parent domain.HolderRef) bool {
	switch parent.Type {
	case domain.HolderCompany:
		return h.CompanyID == parent.ID
	case domain.HolderCompanyBranch:
		return h.CompanyBranchID == parent.ID
	case domain.HolderStation:
		return h.StationID == parent.ID
	case domain.HolderStationBranch:
		return h.StationBranchID == parent.ID
	}
	return false
}
