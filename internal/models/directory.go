package models

const (
	RoleMonitor = "monitor"
	RoleAdmin   = "admin"
)

// Monitor staff member whose presence is tracked (monitors table).
type Monitor struct {
	ID          int64  `json:"id" db:"id"`
	DisplayName string `json:"display_name" db:"display_name"`
	Role        string `json:"role" db:"role"`
	Verified    bool   `json:"verified" db:"verified"`
}

// Room (rooms table).
type Room struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Code     string `json:"code" db:"code"`
	Capacity int    `json:"capacity" db:"capacity"`
}
