package config

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityAccess                      // Access token required
)

// EndpointSecurityConfig maps HTTP route names to their required security level.
// Role checks live in the services; this only decides whether a caller must be known.
var EndpointSecurityConfig = map[string]SecurityLevel{
	"Health": SecurityPublic,

	// Transfers and external movements
	"Allocate":          SecurityAccess,
	"RequestDeposit":    SecurityAccess,
	"RequestWithdrawal": SecurityAccess,

	// Ledger
	"UpdatePending":    SecurityAccess,
	"Approve":          SecurityAccess,
	"Decline":          SecurityAccess,
	"ListTransactions": SecurityAccess,
	"GetTransaction":   SecurityAccess,
	"GetBalance":       SecurityAccess,

	// Car operations
	"CreateOperation":    SecurityAccess,
	"ListOperations":     SecurityAccess,
	"GetOperation":       SecurityAccess,
	"AdvanceOperation":   SecurityAccess,
	"CompleteFuel":       SecurityAccess,
	"CompleteOther":      SecurityAccess,
	"AbortOperation":     SecurityAccess,
	"DownloadAttachment": SecurityAccess,

	// Notifications
	"GetNotifications":     SecurityAccess,
	"MarkNotificationRead": SecurityAccess,
}

// GetSecurityLevel returns the security level for a given route name
func GetSecurityLevel(route string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[route]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityAccess
}
