package model

import (
	"fmt"
	"strings"

	"bigdaytimer-premium/internal/domain"
)

// Plan selects which provider product a checkout is created for.
type Plan string

const (
	PlanBasic   Plan = "basic"
	PlanPremium Plan = "premium"
)

// ErrUnknownPlan is returned by ParsePlan for names outside the catalog.
var ErrUnknownPlan = domain.InvalidRequest("unknown plan")

// DefaultPlan is used when a checkout request does not name a plan.
const DefaultPlan = PlanPremium

func (p Plan) Valid() bool { return p == PlanBasic || p == PlanPremium }

// ParsePlan normalizes s into a Plan. Empty input yields DefaultPlan.
func ParsePlan(s string) (Plan, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultPlan, nil
	}
	p := Plan(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w %q", ErrUnknownPlan, s)
	}
	return p, nil
}
