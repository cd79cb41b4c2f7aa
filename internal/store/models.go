package store

import (
	"database/sql"
	"time"
)

// Contact is a phone identity attached to a bot line.
type Contact struct {
	ID        string
	Phone     string
	Name      string
	LineID    sql.NullString
	CreatedAt time.Time
}

// User is a registered account linked to a contact.
type User struct {
	ID        string
	ContactID string
	Name      string
	Email     string
	Tokens    int
	PlanID    sql.NullString
	CreatedAt time.Time
}

// Plan is a subscription tier.
type Plan struct {
	ID     string
	Name   string
	Price  float64
	Tokens int // pages included
}

// DefaultFreePlan is assumed when a user has no plan assigned.
var DefaultFreePlan = Plan{ID: "free", Name: "Free", Price: 0, Tokens: 1}

// Page is a generated web page record.
type Page struct {
	ID           string
	UserID       string
	Title        string
	Description  string
	Content      string
	PublicLink   string
	Status       string
	Requirements string
	CreatedAt    time.Time
}

// Payment is a checkout attempt record.
type Payment struct {
	ID        string
	UserID    string
	ContactID string
	PlanID    string
	Status    string
	CreatedAt time.Time
}

// Turn is one side of a stored conversation exchange.
type Turn struct {
	Role    string
	Content string
}

// Quota is the page allowance of the user's current plan.
type Quota struct {
	Allowed        bool
	Limit          int
	Used           int
	RemainingPages int
	PlanName       string
}
