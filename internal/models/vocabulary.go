package models

// Category classifies an audit entry by the kind of activity it records.
type Category string

const (
	CategoryAuthentication   Category = "authentication"
	CategoryAuthorization    Category = "authorization"
	CategoryDataAccess       Category = "data_access"
	CategoryDataModification Category = "data_modification"
	CategoryConfiguration    Category = "configuration"
	CategorySecurity         Category = "security"
	CategoryCompliance       Category = "compliance"
	CategorySystem           Category = "system"
	CategoryIntegration      Category = "integration"
	CategoryFinancial        Category = "financial"
)

// Severity indicates how serious an audited event is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Channel identifies the source surface an audited event came through.
type Channel string

const (
	ChannelWeb         Channel = "web"
	ChannelAPI         Channel = "api"
	ChannelMobile      Channel = "mobile"
	ChannelSystem      Channel = "system"
	ChannelIntegration Channel = "integration"
)

// Audit actions form a fixed verb vocabulary.
const (
	ActionCreate           = "CREATE"
	ActionRead             = "READ"
	ActionUpdate           = "UPDATE"
	ActionDelete           = "DELETE"
	ActionLogin            = "LOGIN"
	ActionLogout           = "LOGOUT"
	ActionLoginFailed      = "LOGIN_FAILED"
	ActionExport           = "EXPORT"
	ActionImport           = "IMPORT"
	ActionApprove          = "APPROVE"
	ActionReject           = "REJECT"
	ActionAssign           = "ASSIGN"
	ActionPermissionChange = "PERMISSION_CHANGE"
	ActionPasswordChange   = "PASSWORD_CHANGE"
	ActionImpersonate      = "IMPERSONATE"
	ActionAPICall          = "API_CALL"
	ActionSync             = "SYNC"
	ActionPayment          = "PAYMENT"
	ActionRefund           = "REFUND"
)

var actions = map[string]bool{
	ActionCreate: true, ActionRead: true, ActionUpdate: true, ActionDelete: true,
	ActionLogin: true, ActionLogout: true, ActionLoginFailed: true,
	ActionExport: true, ActionImport: true, ActionApprove: true, ActionReject: true,
	ActionAssign: true, ActionPermissionChange: true, ActionPasswordChange: true,
	ActionImpersonate: true, ActionAPICall: true, ActionSync: true,
	ActionPayment: true, ActionRefund: true,
}

// ValidAction reports whether action is part of the audit verb vocabulary.
func ValidAction(action string) bool {
	return actions[action]
}

// ValidCategory reports whether c is a known audit category.
func ValidCategory(c Category) bool {
	_, ok := retentionDays[c]
	return ok
}

// ValidSeverity reports whether s is a known severity level.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// ValidChannel reports whether ch is a known source channel.
func ValidChannel(ch Channel) bool {
	switch ch {
	case ChannelWeb, ChannelAPI, ChannelMobile, ChannelSystem, ChannelIntegration:
		return true
	}
	return false
}

// PrivilegedAction reports whether an action implies privilege escalation
// or impersonation. Writes for these actions are logged at elevated
// severity so operators can alert on them.
func PrivilegedAction(action string) bool {
	return action == ActionImpersonate || action == ActionPermissionChange
}

// retentionDays maps each category to the number of days its entries stay
// in the hot store. Financial, security, and compliance records are kept
// for roughly seven years.
var retentionDays = map[Category]int{
	CategoryAuthentication:   365,
	CategoryAuthorization:    365,
	CategoryDataAccess:       90,
	CategoryDataModification: 365,
	CategoryConfiguration:    730,
	CategorySecurity:         2555,
	CategoryCompliance:       2555,
	CategorySystem:           180,
	CategoryIntegration:      180,
	CategoryFinancial:        2555,
}

// RetentionDays returns the default hot-store retention for a category.
func RetentionDays(c Category) int {
	if days, ok := retentionDays[c]; ok {
		return days
	}
	return 365
}
