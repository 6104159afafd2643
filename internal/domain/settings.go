package domain

// WorkflowSettings is a snapshot of the persisted approval configuration,
// taken once at the start of a transition. A transition never re-reads
// configuration mid-flight; the stage set computed at submit is cached on the
// payment row.
type WorkflowSettings struct {
	ApprovalAmountLimit      float64
	AuthorizationAmountLimit float64
	RequireDualApproval      bool
	EnableQRVerification     bool
	MaxReviewDays            int

	// RejectToState is where a rejected payment lands: draft (re-editable) or
	// the terminal rejected state.
	RejectToState ApprovalState

	// WorkflowJournalIDs limits the workflow to specific journals. Empty means
	// every journal goes through approval.
	WorkflowJournalIDs []int64
}

// DefaultWorkflowSettings mirrors the documented configuration defaults.
func DefaultWorkflowSettings() WorkflowSettings {
	return WorkflowSettings{
		ApprovalAmountLimit:      10000,
		AuthorizationAmountLimit: 50000,
		RequireDualApproval:      true,
		EnableQRVerification:     true,
		MaxReviewDays:            5,
		RejectToState:            StateDraft,
	}
}

// JournalRequiresWorkflow reports whether payments on the journal must pass
// through the approval chain.
func (s WorkflowSettings) JournalRequiresWorkflow(journalID int64) bool {
	if len(s.WorkflowJournalIDs) == 0 {
		return true
	}
	for _, id := range s.WorkflowJournalIDs {
		if id == journalID {
			return true
		}
	}
	return false
}

// RequiredStagesFor computes the stage set for an amount: a reviewer always
// acts, an approver from the approval limit up, an authorizer from the
// authorization limit up.
func (s WorkflowSettings) RequiredStagesFor(amount float64) []StageRole {
	stages := []StageRole{RoleReviewer}
	if amount >= s.ApprovalAmountLimit {
		stages = append(stages, RoleApprover)
	}
	if amount >= s.AuthorizationAmountLimit {
		stages = append(stages, RoleAuthorizer)
	}
	return stages
}
