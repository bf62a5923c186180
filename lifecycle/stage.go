// Package lifecycle holds the order lifecycle vocabulary and the per-entity state kept in a counter store.
package lifecycle

import "fmt"

// Stage is the position of an entity's current order in the lifecycle.
type Stage int

// Stages in lifecycle order. Cancelled is a sentinel that is never reached by advancing from Completed;
// the entity's next event restarts at New.
const (
	StageNew Stage = iota
	StageAccepted
	StageInPreparation
	StageOutForDelivery
	StageCompleted
	StageCancelled
)

// LabelDelayed is the overlay label of an event that keeps the stage counter unchanged.
const LabelDelayed = "delayed"

var stageLabels = [...]string{
	StageNew:            "new",
	StageAccepted:       "accepted",
	StageInPreparation:  "in_preparation",
	StageOutForDelivery: "out_for_delivery",
	StageCompleted:      "completed",
	StageCancelled:      "cancelled",
}

// Label returns the wire label of the stage.
func (s Stage) Label() string {
	if s < StageNew || int(s) >= len(stageLabels) {
		return fmt.Sprintf("stage_%d", int(s))
	}

	return stageLabels[s]
}

// String implements fmt.Stringer.
func (s Stage) String() string {
	return s.Label()
}

// IsTerminal reports whether the next advance of an order in this stage restarts the lifecycle.
func (s Stage) IsTerminal() bool {
	return s >= StageCompleted
}

// StageFromLabel resolves a wire label; overlay labels are not stages.
func StageFromLabel(label string) (Stage, bool) {
	for stage, candidate := range stageLabels {
		if candidate == label {
			return Stage(stage), true
		}
	}

	return 0, false
}
