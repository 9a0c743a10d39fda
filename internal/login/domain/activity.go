package domain

import "time"

// Activity actions recorded by the fire-and-forget audit sink.
const (
	ActivityLogin  = "login"
	ActivityLogout = "logout"
)

// ActivityEntry is a best-effort audit row. Writes never block the primary
// login flow.
type ActivityEntry struct {
	ID        string
	Email     string
	Action    string
	CreatedAt time.Time
}
