package models

import "time"

// ExecutionOrder is a scheduling hint attached to a plan. Dependency edges
// are honored regardless of the hint.
type ExecutionOrder string

const (
	OrderParallel   ExecutionOrder = "parallel"
	OrderSequential ExecutionOrder = "sequential"
	OrderStaged     ExecutionOrder = "staged"
)

// Valid returns true if the order is a known value.
func (o ExecutionOrder) Valid() bool {
	switch o {
	case OrderParallel, OrderSequential, OrderStaged:
		return true
	default:
		return false
	}
}

// RiskLevel is the coarse risk estimate of a plan.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid returns true if the level is a known value.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	default:
		return false
	}
}

// Complexity is the coarse complexity estimate of a request.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// EditPlan is the complete graph of work units for one request.
// The dependency edges among Units form a DAG.
type EditPlan struct {
	ID                string         `json:"id"`
	Request           EditRequest    `json:"request"`
	Units             []*WorkUnit    `json:"units"`
	ExecutionOrder    ExecutionOrder `json:"execution_order"`
	AffectedFiles     []string       `json:"affected_files"`
	RiskLevel         RiskLevel      `json:"risk_level"`
	EstimatedDuration time.Duration  `json:"estimated_duration"`
	Complexity        Complexity     `json:"complexity"`
	CreatedAt         time.Time      `json:"created_at"`
}

// Unit returns the unit with the given ID, or nil.
func (p *EditPlan) Unit(id string) *WorkUnit {
	for _, u := range p.Units {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// UnitsOf returns the units with the given capability, in plan order.
func (p *EditPlan) UnitsOf(c Capability) []*WorkUnit {
	var out []*WorkUnit
	for _, u := range p.Units {
		if u.Capability == c {
			out = append(out, u)
		}
	}
	return out
}
