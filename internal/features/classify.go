package features

import "strings"

// Enumerated classifier outcomes.
const (
	Contacted   = "contacted"
	Uncontacted = "uncontacted"

	Positive = "Positive"
	Negative = "Negative"

	Inbound   = "Inbound"
	Outbound  = "Outbound"
	NoContact = "No contact"

	PurlYes        = "Yes"
	PurlNo         = "No"
	PurlNotClicked = "Not Clicked"

	StatusAgedUncontacted = "Aged - Uncontacted"
)

var uncontactedStatuses = map[string]bool{
	StatusAgedUncontacted: true,
	"Hot":                 true,
	"Nurture":             true,
	"Disconnected Number": true,
	"New Lead":            true,
	"Duplicate Lead":      true,
	"DO NOT CALL":         true,
	"DM Opt-Out":          true,
	"Short Call":          true,
	"Test Lead":           true,
}

var positiveStatuses = map[string]bool{
	"Client":                 true,
	"C1 Client":              true,
	"Hot":                    true,
	"Scheduled Appointment":  true,
	"Credit Counseling Lead": true,
}

// ContactStatus is contacted when the CRM status is outside the uncontacted
// set or any trunk was recorded for the lead.
func ContactStatus(status, trunk string) string {
	if !uncontactedStatuses[status] || trunk != "" {
		return Contacted
	}
	return Uncontacted
}

// Intention classifies a CRM status as Positive or Negative.
func Intention(status string) string {
	if positiveStatuses[status] {
		return Positive
	}
	return Negative
}

// ConsolidateStatus replaces an aged-uncontacted CRM status with the call
// center status when one exists.
func ConsolidateStatus(status, callCenterStatus string) string {
	if status == StatusAgedUncontacted && callCenterStatus != "" {
		return callCenterStatus
	}
	return status
}

// TemporaryTarget is contacted when the lead was contacted per CRM, has any
// call on record, or opened its PURL.
func TemporaryTarget(contactStatus, calls, purl string) string {
	if contactStatus == Contacted || calls != "" || purl == PurlYes || purl == PurlNo {
		return Contacted
	}
	return Uncontacted
}

// PhoneActivity maps a call-center queue name to its direction.
func PhoneActivity(queue string) string {
	switch {
	case queue == "":
		return NoContact
	case strings.HasPrefix(queue, "Sales_Inbound"):
		return Inbound
	case strings.HasPrefix(queue, "Sales_Outbound"):
		return Outbound
	}
	return queue
}

// PurlCompletion is Yes when the responder filled both name fields.
func PurlCompletion(first, last string) string {
	if first == "" || last == "" {
		return PurlNo
	}
	return PurlYes
}
