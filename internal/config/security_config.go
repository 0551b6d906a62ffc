package config

type SecurityLevel int

const (
	SecurityPublic  SecurityLevel = iota // No authentication
	SecurityAccess                       // Any valid access token
	SecurityAdmin                        // Access token with the admin role
	SecurityService                      // Service token from a trusted collaborator (payment webhooks, onboarding)
)

// EndpointSecurityConfig maps HTTP route names to their required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	"Health": SecurityPublic,

	// Evidence storage. Upload and download URLs are handed out by the
	// authenticated upload-url route and carry their own key.
	"EvidenceUploadURL": SecurityAccess,
	"EvidenceUpload":    SecurityPublic,
	"EvidenceDownload":  SecurityPublic,

	// Rentals
	"CreateRental":     SecurityAccess,
	"GetRental":        SecurityAccess,
	"ListRentals":      SecurityAccess,
	"TransitionRental": SecurityAccess,

	// Issue reports
	"ReportIssue":        SecurityAccess,
	"ListIssueReports":   SecurityAccess,
	"ResolveIssueReport": SecurityAdmin,

	// Wallets
	"ListWallets":       SecurityAccess,
	"ListLedgerEntries": SecurityAccess,

	// Top-ups
	"CreateTopUp":  SecurityAccess,
	"ConfirmTopUp": SecurityService,
	"FailTopUp":    SecurityService,

	// Withdrawals
	"RequestWithdrawal": SecurityAccess,
	"ApproveWithdrawal": SecurityAdmin,
	"RejectWithdrawal":  SecurityAdmin,

	// Users
	"OnboardUser":    SecurityService,
	"UpdateFCMToken": SecurityAccess,
}

// GetSecurityLevel returns the security level for a given route name
func GetSecurityLevel(route string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[route]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityService
}
