package reconcile

import (
	"fmt"

	"github.com/bbus-fleet/backend/pkg/apperr"
)

// Step names a stage of order reconciliation.
type Step string

const (
	StepValidateOrder       Step = "validate_order"
	StepResolveOrganization Step = "resolve_organization"
	StepResolveRoute        Step = "resolve_route"
	StepConsistencyCheck    Step = "consistency_check"
	StepResolveBus          Step = "resolve_bus"
	StepParseTime           Step = "parse_time"
	StepUpsertTimeSlot      Step = "upsert_time_slot"
	StepUpdateBus           Step = "update_bus"
	StepAudit               Step = "audit"
	StepTransaction         Step = "transaction"
)

// ErrDictionariesOutOfSync means the route resolved for the order belongs to another organization.
var ErrDictionariesOutOfSync = apperr.New(apperr.KindConsistency,
	"dictionaries out of sync: the route's organization does not match the order's organization, the routes dictionary might be outdated")

// StepError reports which step failed and for which key. Its kind is the kind of Err.
type StepError struct {
	Step Step
	Key  string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s [%s]: %v", e.Step, e.Key, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func fail(step Step, key string, err error) *StepError {
	return &StepError{Step: step, Key: key, Err: err}
}
