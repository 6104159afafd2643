package domain

import (
	"reflect"
	"testing"
)

func TestApprovalState_Valid(t *testing.T) {
	valid := []ApprovalState{
		StateDraft, StateUnderReview, StateForApproval, StateForAuthorization,
		StateApproved, StatePosted, StateCancelled, StateRejected,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("state %q should be valid", s)
		}
	}

	if ApprovalState("pending").Valid() {
		t.Error("unknown state should not be valid")
	}
	if ApprovalState("").Valid() {
		t.Error("empty state should not be valid")
	}
}

func TestApprovalState_Terminal(t *testing.T) {
	cases := map[ApprovalState]bool{
		StateDraft:            false,
		StateUnderReview:      false,
		StateForApproval:      false,
		StateForAuthorization: false,
		StateApproved:         false,
		StatePosted:           true,
		StateCancelled:        true,
		StateRejected:         true,
	}
	for state, want := range cases {
		if got := state.Terminal(); got != want {
			t.Errorf("Terminal(%q) = %v, want %v", state, got, want)
		}
	}
}

func TestStageRole_Stage(t *testing.T) {
	cases := map[StageRole]ApprovalState{
		RoleReviewer:   StateUnderReview,
		RoleApprover:   StateForApproval,
		RoleAuthorizer: StateForAuthorization,
	}
	for role, want := range cases {
		if got := role.Stage(); got != want {
			t.Errorf("Stage(%q) = %q, want %q", role, got, want)
		}
	}
}

func TestStageRole_Group(t *testing.T) {
	if got := RoleReviewer.Group(); got != "payments.reviewer" {
		t.Errorf("Group() = %q", got)
	}
	if got := RoleAuthorizer.Group(); got != "payments.authorizer" {
		t.Errorf("Group() = %q", got)
	}
}

func TestRequiredStagesFor(t *testing.T) {
	s := DefaultWorkflowSettings()

	cases := []struct {
		amount float64
		want   []StageRole
	}{
		{5000, []StageRole{RoleReviewer}},
		{9999.99, []StageRole{RoleReviewer}},
		{10000, []StageRole{RoleReviewer, RoleApprover}},
		{25000, []StageRole{RoleReviewer, RoleApprover}},
		{50000, []StageRole{RoleReviewer, RoleApprover, RoleAuthorizer}},
		{60000, []StageRole{RoleReviewer, RoleApprover, RoleAuthorizer}},
	}
	for _, tc := range cases {
		got := s.RequiredStagesFor(tc.amount)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("RequiredStagesFor(%v) = %v, want %v", tc.amount, got, tc.want)
		}
	}
}

func TestJournalRequiresWorkflow(t *testing.T) {
	s := DefaultWorkflowSettings()
	if !s.JournalRequiresWorkflow(7) {
		t.Error("empty journal list must include every journal")
	}

	s.WorkflowJournalIDs = []int64{1, 3}
	if !s.JournalRequiresWorkflow(3) {
		t.Error("listed journal must require the workflow")
	}
	if s.JournalRequiresWorkflow(2) {
		t.Error("unlisted journal must be exempt")
	}
}

func TestNextRequiredStage(t *testing.T) {
	p := &Payment{RequiredStages: []StageRole{RoleReviewer, RoleAuthorizer}}

	next, ok := p.NextRequiredStage(RoleReviewer)
	if !ok || next != RoleAuthorizer {
		t.Fatalf("expected authorizer after reviewer with approver skipped, got %q ok=%v", next, ok)
	}

	if _, ok := p.NextRequiredStage(RoleAuthorizer); ok {
		t.Error("no stage expected after the last required role")
	}

	solo := &Payment{RequiredStages: []StageRole{RoleReviewer}}
	if _, ok := solo.NextRequiredStage(RoleReviewer); ok {
		t.Error("single-stage payment has no next stage")
	}
}

func TestHeldRole(t *testing.T) {
	uid := int64(42)
	p := &Payment{ReviewerID: &uid}

	role, ok := p.HeldRole(42)
	if !ok || role != RoleReviewer {
		t.Fatalf("expected reviewer held by user 42, got %q ok=%v", role, ok)
	}

	if _, ok := p.HeldRole(7); ok {
		t.Error("user 7 holds no role")
	}
}

func TestRoleForState(t *testing.T) {
	p := &Payment{State: StateForApproval}
	role, ok := p.RoleForState()
	if !ok || role != RoleApprover {
		t.Fatalf("expected approver for for_approval, got %q ok=%v", role, ok)
	}

	p = &Payment{State: StateApproved, RequiredStages: []StageRole{RoleReviewer, RoleApprover}}
	role, ok = p.RoleForState()
	if !ok || role != RoleApprover {
		t.Fatalf("expected last acting role for approved, got %q ok=%v", role, ok)
	}

	p = &Payment{State: StateDraft}
	if _, ok := p.RoleForState(); ok {
		t.Error("draft has no acting role")
	}
}

func TestUser_HasGroup(t *testing.T) {
	u := &User{ApprovalGroups: []string{"payments.reviewer", "payments.approver"}}
	if !u.HasGroup("payments.approver") {
		t.Error("expected group membership")
	}
	if u.HasGroup("payments.authorizer") {
		t.Error("unexpected group membership")
	}
}
