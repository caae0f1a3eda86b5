package domain

import "github.com/shopspring/decimal"

type ServiceKind string

const (
	ServiceKindFuel  ServiceKind = "fuel"
	ServiceKindOther ServiceKind = "other"
)

// Service is a sellable item; for fuel, Cost is the price of one unit.
type Service struct {
	ID   int32           `json:"id"`
	Name string          `json:"name"`
	Kind ServiceKind     `json:"kind"`
	Cost decimal.Decimal `json:"cost"`
}
