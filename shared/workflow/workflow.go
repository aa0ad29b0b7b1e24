package workflow

import "strings"

const (
	ReportStatusPending       = "pending"
	ReportStatusInvestigating = "investigating"
	ReportStatusResolved      = "resolved"
)

const (
	ReportEventSubmitted     = "report_submitted"
	ReportEventInvestigating = "report_investigating"
	ReportEventResolved      = "report_resolved"
)

const (
	AlertStatusOpen         = "open"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusResolved     = "resolved"
)

const (
	AlertEventRaised       = "alert_raised"
	AlertEventAcknowledged = "alert_acknowledged"
	AlertEventResolved     = "alert_resolved"
)

var reportTransitions = map[string]map[string]string{
	ReportStatusPending: {
		ReportStatusInvestigating: ReportEventInvestigating,
		ReportStatusResolved:      ReportEventResolved,
	},
	ReportStatusInvestigating: {
		ReportStatusResolved: ReportEventResolved,
	},
}

var alertTransitions = map[string]map[string]string{
	AlertStatusOpen: {
		AlertStatusAcknowledged: AlertEventAcknowledged,
		AlertStatusResolved:     AlertEventResolved,
	},
	AlertStatusAcknowledged: {
		AlertStatusResolved: AlertEventResolved,
	},
}

func NormalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

func CanTransitionReport(fromStatus string, toStatus string) bool {
	return canTransition(reportTransitions, fromStatus, toStatus)
}

func ReportEventForTransition(fromStatus string, toStatus string) string {
	return eventForTransition(reportTransitions, fromStatus, toStatus)
}

func CanTransitionAlert(fromStatus string, toStatus string) bool {
	return canTransition(alertTransitions, fromStatus, toStatus)
}

func AlertEventForTransition(fromStatus string, toStatus string) string {
	return eventForTransition(alertTransitions, fromStatus, toStatus)
}

func canTransition(table map[string]map[string]string, fromStatus string, toStatus string) bool {
	fromStatus = NormalizeStatus(fromStatus)
	toStatus = NormalizeStatus(toStatus)
	if fromStatus == toStatus {
		return true
	}
	next := table[fromStatus]
	if next == nil {
		return false
	}
	_, ok := next[toStatus]
	return ok
}

func eventForTransition(table map[string]map[string]string, fromStatus string, toStatus string) string {
	fromStatus = NormalizeStatus(fromStatus)
	toStatus = NormalizeStatus(toStatus)
	if fromStatus == toStatus {
		return ""
	}
	next := table[fromStatus]
	if next == nil {
		return ""
	}
	return next[toStatus]
}

func AllReportStatuses() []string {
	return []string{
		ReportStatusPending,
		ReportStatusInvestigating,
		ReportStatusResolved,
	}
}

func AllAlertStatuses() []string {
	return []string{
		AlertStatusOpen,
		AlertStatusAcknowledged,
		AlertStatusResolved,
	}
}
