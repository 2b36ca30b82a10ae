package license

import "strings"

// Plan identifies a subscription tier
type Plan string

const (
	PlanStarter    Plan = "starter"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// PlanPricing holds the price of each plan in paise (1 INR = 100 paise)
type PlanPricing struct {
	StarterPaise    int64
	ProPaise        int64
	EnterprisePaise int64
}

// DefaultPricing is used when no pricing is configured
var DefaultPricing = PlanPricing{
	StarterPaise:    49900,
	ProPaise:        149900,
	EnterprisePaise: 499900,
}

// ParsePlan normalizes and validates a plan name.
func ParsePlan(s string) (Plan, bool) {
	switch Plan(strings.ToLower(strings.TrimSpace(s))) {
	case PlanStarter:
		return PlanStarter, true
	case PlanPro:
		return PlanPro, true
	case PlanEnterprise:
		return PlanEnterprise, true
	default:
		return "", false
	}
}

// Amount returns the price of a plan in paise.
func (p PlanPricing) Amount(plan Plan) int64 {
	switch plan {
	case PlanStarter:
		return p.StarterPaise
	case PlanPro:
		return p.ProPaise
	case PlanEnterprise:
		return p.EnterprisePaise
	default:
		return 0
	}
}
