package dispatch

import "fmt"

// TrunkResolutionError is returned when no trunk can be chosen for an
// assignment: either the account has several trunks and no disambiguator
// was supplied, or it has none at all. It is raised before any mutation.
type TrunkResolutionError struct {
	TrunkCount int
}

func (e *TrunkResolutionError) Error() string {
	if e.TrunkCount == 0 {
		return "trunk resolution: no inbound trunks exist and no trunk id or name was given"
	}
	return fmt.Sprintf("trunk resolution: %d trunks exist and no trunk id or name was given", e.TrunkCount)
}

// RuleCreationError is returned when the provider rejects a dispatch-rule
// create, typically because a covering rule still exists. It is surfaced
// to the caller, never retried: blind retry could loop against a rule a
// previous caller chose not to replace.
type RuleCreationError struct {
	Name string
	Err  error
}

func (e *RuleCreationError) Error() string {
	return fmt.Sprintf("creating dispatch rule %q: %v", e.Name, e.Err)
}

func (e *RuleCreationError) Unwrap() error { return e.Err }

// RuleDeletionError is returned when every delete call signature failed
// for a rule. Rules not yet deleted remain, so a retried reconciliation
// may observe different pre-existing state than the failed one did.
type RuleDeletionError struct {
	RuleID   string
	Attempts int
	Err      error
}

func (e *RuleDeletionError) Error() string {
	return fmt.Sprintf("deleting dispatch rule %q: all %d call signatures failed: %v", e.RuleID, e.Attempts, e.Err)
}

func (e *RuleDeletionError) Unwrap() error { return e.Err }
