package service

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"khazna-backend/internal/domain"
)

func money(d decimal.Decimal) string {
	return d.StringFixed(domain.MoneyPlaces)
}

func transferNotice(tx *domain.Transaction, src, dst *domain.Holder, category domain.NotificationCategory) notice {
	return notice{
		title:       "تحويل رصيد",
		description: fmt.Sprintf("تم تحويل مبلغ %s جنيه من %s إلى %s", money(tx.Amount), src.Name, dst.Name),
		category:    category,
		attributes:  transactionAttributes("TRANSFER", tx),
	}
}

func depositRequestNotice(tx *domain.Transaction, h *domain.Holder) notice {
	title := "طلب إيداع"
	if !tx.IsIncoming {
		title = "طلب سحب"
	}
	return notice{
		title:       title,
		description: fmt.Sprintf("تم تسجيل %s بمبلغ %s جنيه لحساب %s برقم مرجعي %s", title, money(tx.Amount), h.Name, tx.ReferenceCode),
		category:    domain.CategoryMoney,
		attributes:  transactionAttributes("MOVEMENT_REQUESTED", tx),
	}
}

func approvalNotice(tx *domain.Transaction, h *domain.Holder) notice {
	return notice{
		title:       "تمت الموافقة على المعاملة",
		description: fmt.Sprintf("تمت الموافقة على المعاملة %s بمبلغ %s جنيه، الرصيد الحالي لحساب %s هو %s جنيه", tx.ReferenceCode, money(tx.Amount), h.Name, money(h.Balance)),
		category:    domain.CategoryMoney,
		attributes:  transactionAttributes("MOVEMENT_APPROVED", tx),
	}
}

func declineNotice(tx *domain.Transaction) notice {
	return notice{
		title:       "تم رفض المعاملة",
		description: fmt.Sprintf("تم رفض المعاملة %s بمبلغ %s جنيه", tx.ReferenceCode, money(tx.Amount)),
		category:    domain.CategoryMoney,
		attributes:  transactionAttributes("MOVEMENT_DECLINED", tx),
	}
}

func settlementNotice(op *domain.CarOperation, car *domain.Car, svc *domain.Service, branch *domain.StationBranch) notice {
	n := notice{attributes: map[string]string{
		"type":         "OPERATION_COMPLETED",
		"operation_id": strconv.FormatInt(op.ID, 10),
		"car_id":       strconv.FormatInt(int64(car.ID), 10),
		"company_cost": money(op.CompanyCost),
		"station_cost": money(op.StationCost),
	}}
	if op.Kind == domain.ServiceKindFuel {
		n.title = "عملية تموين"
		n.category = domain.CategoryFuel
		n.description = fmt.Sprintf("تم تموين السيارة %s بكمية %s من %s في %s بتكلفة %s جنيه",
			car.Code, op.Amount.String(), svc.Name, branch.Name, money(op.CompanyCost))
		return n
	}
	n.title = "عملية خدمة"
	n.category = domain.CategoryService
	n.description = fmt.Sprintf("تم تنفيذ خدمة %s للسيارة %s في %s بتكلفة %s جنيه",
		svc.Name, car.Code, branch.Name, money(op.CompanyCost))
	return n
}

func transactionAttributes(kind string, tx *domain.Transaction) map[string]string {
	return map[string]string{
		"type":           kind,
		"family":         string(tx.Family),
		"transaction_id": strconv.FormatInt(tx.ID, 10),
		"reference_code": tx.ReferenceCode,
		"amount":         money(tx.Amount),
	}
}
