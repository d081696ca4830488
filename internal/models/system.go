package models

// System status values as reported by user management.
const (
	SystemStatusActive      = "active"
	SystemStatusDeactivated = "deactivated"
)

// SystemTypeNationalID marks subscribers with a fixed, built-in permission
// set per event type that overrides declared settings.
const SystemTypeNationalID = "nationalId"

// System is a subscriber integration as reported by the user management
// service. It is always fetched fresh at dispatch time; status and
// permissions may have changed since a registration was created.
type System struct {
	ID       string         `json:"_id"`
	ClientID string         `json:"client_id"`
	Name     string         `json:"name"`
	Username string         `json:"username"`
	Type     string         `json:"type"`
	Status   string         `json:"status"`
	Secret   string         `json:"sha_secret"`
	Settings SystemSettings `json:"settings"`
}

// SystemSettings holds the subscriber's declared permission settings.
type SystemSettings struct {
	Webhook []WebhookPermission `json:"webhook"`
}

// WebhookPermission declares the record sections a subscriber may see for
// one event type.
type WebhookPermission struct {
	Event       string   `json:"event"`
	Permissions []string `json:"permissions"`
}

// Active reports whether the system may subscribe and receive deliveries.
// Inactive subscribers' registrations are dormant, not deleted.
func (s *System) Active() bool {
	return s.Status == SystemStatusActive
}
