/*
Package production runs the production order lifecycle.

PURPOSE:
  A production order makes ONE unit of a variant. It moves through a fixed
  set of statuses; every change appends a history row, and reaching the
  terminal status posts the unit into the finished-goods ledger.

KEY CONCEPTS:
  - Status registry: compiled table of definitions + pure transition rules
  - Order.TransitionTo: the only way an order's status changes
  - Service: creates orders, changes statuses in atomic batches, and runs
    the finish side effects (ledger posting, sales line sync, notification)

TRANSITION RULE:
  From the terminal status (or an unknown one): nowhere.
  From any other status: every non-legacy, non-terminal status plus the
  terminal one, minus the current status, minus NEW unless current is NEW.
  Legacy statuses are valid current values, never targets.

SEE ALSO:
  - order.go:   Order, TransitionTo, finished-at policy
  - service.go: CreateOrder, ChangeOrderStatus
  - check.go:   history vs cached status consistency check
*/
package production

import (
	"sort"
	"strings"
)

// =============================================================================
// STATUS REGISTRY
// =============================================================================

// Status is an order lifecycle code.
type Status string

const (
	StatusNew            Status = "new"
	StatusDoing          Status = "doing"
	StatusEmbroidery     Status = "embroidery"
	StatusDeciding       Status = "deciding"
	StatusOnHold         Status = "on_hold"
	StatusFinished       Status = "finished"
	StatusAlmostFinished Status = "almost_finished" // legacy
)

// StatusDefinition is one immutable registry entry.
type StatusDefinition struct {
	Code     Status
	Label    string
	Terminal bool
	Legacy   bool
}

// definitions in display order.
var definitions = []StatusDefinition{
	{Code: StatusNew, Label: "New"},
	{Code: StatusDoing, Label: "Doing"},
	{Code: StatusEmbroidery, Label: "Embroidery"},
	{Code: StatusDeciding, Label: "Deciding"},
	{Code: StatusOnHold, Label: "On hold"},
	{Code: StatusFinished, Label: "Finished", Terminal: true},
	{Code: StatusAlmostFinished, Label: "Almost finished", Legacy: true},
}

var byCode = func() map[Status]StatusDefinition {
	m := make(map[Status]StatusDefinition, len(definitions))
	for _, d := range definitions {
		m[d.Code] = d
	}
	return m
}()

// ActiveListOrder is the grouping order of the active orders view.
var ActiveListOrder = []Status{StatusNew, StatusDoing, StatusEmbroidery, StatusDeciding, StatusOnHold}

// Definitions returns the registry in display order.
func Definitions() []StatusDefinition {
	out := make([]StatusDefinition, len(definitions))
	copy(out, definitions)
	return out
}

// Lookup returns the definition for code.
func Lookup(code Status) (StatusDefinition, bool) {
	d, ok := byCode[code]
	return d, ok
}

// IsTerminal reports whether s is the finishing status.
func IsTerminal(s Status) bool { return byCode[s].Terminal }

// Label returns the display label, or the raw code when unknown.
func (s Status) Label() string {
	if d, ok := byCode[s]; ok {
		return d.Label
	}
	return string(s)
}

// Normalize trims and lower-cases a raw status value.
func Normalize(raw string) Status {
	return Status(strings.ToLower(strings.TrimSpace(raw)))
}

// ParseStatus normalizes raw and checks it is a known code.
func ParseStatus(raw string) (Status, error) {
	s := Normalize(raw)
	if _, ok := byCode[s]; !ok {
		return "", &UnknownStatusError{Value: raw}
	}
	return s, nil
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// AllowedTransitions returns the statuses reachable from current, sorted.
func AllowedTransitions(current Status) []Status {
	d, ok := byCode[current]
	if !ok || d.Terminal {
		return []Status{}
	}

	var out []Status
	for _, def := range definitions {
		if def.Legacy || def.Code == current {
			continue
		}
		if def.Code == StatusNew && current != StatusNew {
			continue
		}
		out = append(out, def.Code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsAllowedTransition reports whether current -> next is permitted.
func IsAllowedTransition(current, next Status) bool {
	for _, s := range AllowedTransitions(current) {
		if s == next {
			return true
		}
	}
	return false
}

// TransitionMap returns AllowedTransitions for every status, optionally
// including legacy current statuses.
func TransitionMap(includeLegacy bool) map[Status][]Status {
	m := make(map[Status][]Status, len(definitions))
	for _, d := range definitions {
		if d.Legacy && !includeLegacy {
			continue
		}
		m[d.Code] = AllowedTransitions(d.Code)
	}
	return m
}

// Choice is a (code, label) pair for selection lists.
type Choice struct {
	Code  Status `json:"code"`
	Label string `json:"label"`
}

// Choices lists statuses in display order.
func Choices(includeLegacy, includeTerminal bool) []Choice {
	var out []Choice
	for _, d := range definitions {
		if d.Legacy && !includeLegacy {
			continue
		}
		if d.Terminal && !includeTerminal {
			continue
		}
		out = append(out, Choice{Code: d.Code, Label: d.Label})
	}
	return out
}

// BulkChoices lists targets offered for bulk changes on active orders.
// NEW is never a bulk target.
func BulkChoices() []Choice {
	var out []Choice
	for _, c := range Choices(false, true) {
		if c.Code != StatusNew {
			out = append(out, c)
		}
	}
	return out
}
