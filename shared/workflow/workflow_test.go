package workflow

import "testing"

func TestCanTransitionReport(t *testing.T) {
	if !CanTransitionReport(ReportStatusPending, ReportStatusInvestigating) {
		t.Fatalf("expected pending -> investigating to be allowed")
	}
	if !CanTransitionReport(ReportStatusPending, ReportStatusResolved) {
		t.Fatalf("expected pending -> resolved to be allowed")
	}
	if CanTransitionReport(ReportStatusResolved, ReportStatusPending) {
		t.Fatalf("expected resolved -> pending to be blocked")
	}
	if !CanTransitionReport("Investigating", "investigating") {
		t.Fatalf("expected same-status transition to be a no-op allow")
	}
}

func TestCanTransitionAlert(t *testing.T) {
	if !CanTransitionAlert(AlertStatusOpen, AlertStatusAcknowledged) {
		t.Fatalf("expected open -> acknowledged to be allowed")
	}
	if CanTransitionAlert(AlertStatusResolved, AlertStatusOpen) {
		t.Fatalf("expected resolved -> open to be blocked")
	}
}

func TestEventForTransition(t *testing.T) {
	if ev := ReportEventForTransition(ReportStatusPending, ReportStatusInvestigating); ev != ReportEventInvestigating {
		t.Fatalf("unexpected event %q", ev)
	}
	if ev := AlertEventForTransition(AlertStatusAcknowledged, AlertStatusResolved); ev != AlertEventResolved {
		t.Fatalf("unexpected event %q", ev)
	}
	if ev := ReportEventForTransition(ReportStatusPending, ReportStatusPending); ev != "" {
		t.Fatalf("expected empty event for same-status, got %q", ev)
	}
}
