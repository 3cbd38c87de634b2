package domain

import "time"

// Role gates what a dashboard account may see. Admins manage everything,
// managers read statistics and logs, plain users read logs only.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// CanViewStats reports whether the role may read KPI and trend endpoints.
func (r Role) CanViewStats() bool {
	return r == RoleAdmin || r == RoleManager
}

// DashboardUser is an account of the analytics dashboard.
type DashboardUser struct {
	ID           string    `json:"id" gorm:"column:id;primaryKey"`
	Username     string    `json:"username" gorm:"column:username;unique"`
	PasswordHash string    `json:"-" gorm:"column:password_hash"`
	Role         Role      `json:"role" gorm:"column:role"`
	Disabled     bool      `json:"disabled" gorm:"column:disabled"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (DashboardUser) TableName() string {
	return "dashboard_users"
}
