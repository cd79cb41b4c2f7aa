// Package subscription drives the plan selection and payment confirmation
// conversation.
package subscription

import (
	"regexp"

	"webgen-bot/internal/intent"
	"webgen-bot/internal/store"
)

// Canonical is the normalized plan family a user message maps to.
type Canonical string

const (
	CanonFree     Canonical = "free"
	CanonBasic    Canonical = "basic"
	CanonPro      Canonical = "pro"
	CanonBusiness Canonical = "business"
	CanonUnknown  Canonical = "unknown"
)

// Matching runs over accent-folded lowercase text, so "Básico" and "basico"
// land on the same class. Common misspellings of business are accepted.
var (
	reFree     = regexp.MustCompile(`gratis|free|gratuit`)
	reBasic    = regexp.MustCompile(`basico|basic`)
	rePro      = regexp.MustCompile(`pro|premium|avanzad`)
	reBusiness = regexp.MustCompile(`business|empresa|negocio|bussines|busines`)
)

// ClassifyCanonical maps free-form user input to a plan family.
func ClassifyCanonical(input string) Canonical {
	n := intent.Normalize(input)
	switch {
	case reFree.MatchString(n):
		return CanonFree
	case reBasic.MatchString(n):
		return CanonBasic
	case rePro.MatchString(n):
		return CanonPro
	case reBusiness.MatchString(n):
		return CanonBusiness
	default:
		return CanonUnknown
	}
}

// planCanonical maps a stored plan name to its family.
func planCanonical(planName string) Canonical {
	return ClassifyCanonical(planName)
}

// findPlan picks the stored plan matching the canonical family.
func findPlan(plans []store.Plan, canon Canonical) (store.Plan, bool) {
	for _, p := range plans {
		if planCanonical(p.Name) == canon {
			return p, true
		}
	}
	// The free tier exists even when the plans table omits it.
	if canon == CanonFree {
		return store.DefaultFreePlan, true
	}
	return store.Plan{}, false
}
