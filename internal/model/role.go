package model

// Role is the side a user plays in a negotiation or chat thread.
type Role string

const (
	RoleFarmer     Role = "farmer"
	RoleWholesaler Role = "wholesaler"
)

func (r Role) Valid() bool {
	return r == RoleFarmer || r == RoleWholesaler
}

// Quantity is an amount of produce with its unit, e.g. 100 quintal.
// A zero Value means no quantity was given.
type Quantity struct {
	Value float64 `gorm:"column:value" json:"value"`
	Unit  string  `gorm:"column:unit;size:32" json:"unit"`
}

func (q Quantity) IsZero() bool {
	return q.Value == 0 && q.Unit == ""
}
