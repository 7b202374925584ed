package models

import dErrors "dealdesk/pkg/domain-errors"

// Stage is a property's position in the acquisition lifecycle. Stages are
// monotone except for the explicit review loops; rejected and
// contract_generated are terminal.
type Stage string

const (
	StageDocumentsPending    Stage = "documents_pending"
	StageInitial             Stage = "initial"
	StageReviewRequired      Stage = "review_required"
	StagePassed70Rule        Stage = "passed_70_rule"
	StageReviewRequiredTitle Stage = "review_required_title"
	StageInspectionDone      Stage = "inspection_done"
	StageReviewRequired80    Stage = "review_required_80"
	StagePassed80Rule        Stage = "passed_80_rule"
	StageContractGenerated   Stage = "contract_generated"
	StageRejected            Stage = "rejected"
)

var validStages = map[Stage]bool{
	StageDocumentsPending:    true,
	StageInitial:             true,
	StageReviewRequired:      true,
	StagePassed70Rule:        true,
	StageReviewRequiredTitle: true,
	StageInspectionDone:      true,
	StageReviewRequired80:    true,
	StagePassed80Rule:        true,
	StageContractGenerated:   true,
	StageRejected:            true,
}

// allowedTransitions is the single source of truth for the stage machine.
// Guards live in the service; this table answers only "may from ever move
// to to". Rejection from any non-terminal stage is handled in
// TransitionAllowed rather than enumerated here.
var allowedTransitions = map[Stage][]Stage{
	StageDocumentsPending:    {StageInitial},
	StageInitial:             {StagePassed70Rule, StageReviewRequired},
	StageReviewRequired:      {StagePassed70Rule},
	StagePassed70Rule:        {StageInspectionDone, StageReviewRequiredTitle},
	StageReviewRequiredTitle: {StageInspectionDone},
	StageInspectionDone:      {StagePassed80Rule, StageReviewRequired80},
	StageReviewRequired80:    {StagePassed80Rule},
	StagePassed80Rule:        {StageContractGenerated},
}

// ParseStage validates external stage input.
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if !validStages[st] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown stage %q", s)
	}
	return st, nil
}

// IsValid checks the stage against the supported enum values.
func (s Stage) IsValid() bool { return validStages[s] }

// IsTerminal reports whether the stage accepts no further transitions.
func (s Stage) IsTerminal() bool {
	return s == StageRejected || s == StageContractGenerated
}

func (s Stage) String() string { return string(s) }

// TransitionAllowed reports whether the stage machine lists from -> to.
// Unlisted transitions must fail; the machine never guesses an adjacent
// valid state.
func TransitionAllowed(from, to Stage) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StageRejected {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
