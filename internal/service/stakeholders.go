package service

import (
	"context"
	"fmt"
	"sort"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/repository"
)

// stakeholders returns the users who follow a holder's balance, sorted and
// without duplicates, merged with any extra ids.
func stakeholders(ctx context.Context, users repository.UserRepository, h *domain.Holder, extra ...int32) ([]int32, error) {
	var filters []repository.UserFilter
	switch h.Ref.Type {
	case domain.HolderCompany:
		filters = append(filters, companyOwners(h.CompanyID))
	case domain.HolderCompanyBranch, domain.HolderCar:
		filters = append(filters, companyOwners(h.CompanyID), repository.UserFilter{
			Roles:           []domain.Role{domain.RoleCompanyBranchManager},
			CompanyBranchID: h.CompanyBranchID,
		})
	case domain.HolderStation:
		filters = append(filters, stationOwners(h.StationID))
	case domain.HolderStationBranch:
		filters = append(filters, stationOwners(h.StationID), repository.UserFilter{
			Roles:           []domain.Role{domain.RoleStationBranchManager},
			StationBranchID: h.StationBranchID,
		})
	default:
		return nil, fmt.Errorf("unknown holder type %q", h.Ref.Type)
	}

	seen := make(map[int32]bool)
	var ids []int32
	add := func(id int32) {
		if id != 0 && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, f := range filters {
		if f.CompanyID == 0 && f.CompanyBranchID == 0 && f.StationID == 0 && f.StationBranchID == 0 {
			continue
		}
		found, err := users.ListIDs(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve stakeholders of %s: %w", h.Ref, err)
		}
		for _, id := range found {
			add(id)
		}
	}
	for _, id := range extra {
		add(id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func companyOwners(companyID int32) repository.UserFilter {
	return repository.UserFilter{Roles: []domain.Role{domain.RoleCompanyOwner}, CompanyID: companyID}
}

func stationOwners(stationID int32) repository.UserFilter {
	return repository.UserFilter{Roles: []domain.Role{domain.RoleStationOwner}, StationID: stationID}
}

// notice is one message fanned out to several users through the outbox.
type notice struct {
	title       string
	description string
	category    domain.NotificationCategory
	attributes  map[string]string
}

func enqueue(ctx context.Context, outbox repository.OutboxRepository, recipients []int32, n notice) error {
	if len(recipients) == 0 {
		return nil
	}
	msgs := make([]domain.OutboxMessage, 0, len(recipients))
	for _, id := range recipients {
		msgs = append(msgs, domain.OutboxMessage{
			RecipientID: id,
			Title:       n.title,
			Description: n.description,
			Category:    n.category,
			Attributes:  n.attributes,
		})
	}
	if err := outbox.Enqueue(ctx, msgs); err != nil {
		return fmt.Errorf("failed to enqueue notifications: %w", err)
	}
	return nil
}
