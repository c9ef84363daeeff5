package types

import "time"

// Company is a tenant. Every domain row below carries its CompanyID and is
// invisible to other tenants.
type Company struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone,omitempty"`
	Address   string     `json:"address,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// User is a member of a company (owner, admin, technician, or office staff).
type User struct {
	ID           int64     `json:"id"`
	CompanyID    int64     `json:"company_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         UserRole  `json:"role"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Client is a customer of a company: the property owner or manager whose
// irrigation systems are serviced.
type Client struct {
	ID        int64      `json:"id"`
	CompanyID int64      `json:"company_id"`
	Name      string     `json:"name"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Address   string     `json:"address,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Site is a serviced property belonging to a client. A client may have
// several sites (residence, rental properties, commercial lots).
type Site struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"company_id"`
	ClientID  int64     `json:"client_id"`
	Label     string    `json:"label"`
	Address   string    `json:"address"`
	ZoneCount int       `json:"zone_count"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Inspection is a walk-through of a site's irrigation system. Line items
// record per-zone findings and feed estimate generation.
type Inspection struct {
	ID           int64            `json:"id"`
	CompanyID    int64            `json:"company_id"`
	SiteID       int64            `json:"site_id"`
	TechnicianID int64            `json:"technician_id"`
	Status       InspectionStatus `json:"status"`
	ScheduledFor *time.Time       `json:"scheduled_for,omitempty"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	Summary      string           `json:"summary,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// InspectionItem is a single finding within an inspection: a broken head,
// a leaking valve, a misadjusted zone.
type InspectionItem struct {
	ID           int64  `json:"id"`
	InspectionID int64  `json:"inspection_id"`
	Zone         int    `json:"zone"`
	Finding      string `json:"finding"`
	Severity     string `json:"severity"`
	PhotoURL     string `json:"photo_url,omitempty"`
}

// Estimate is a priced repair proposal, usually generated from an
// inspection's findings. Amounts are in cents.
type Estimate struct {
	ID           int64          `json:"id"`
	CompanyID    int64          `json:"company_id"`
	ClientID     int64          `json:"client_id"`
	SiteID       int64          `json:"site_id"`
	InspectionID *int64         `json:"inspection_id,omitempty"`
	Status       EstimateStatus `json:"status"`
	TotalCents   int64          `json:"total_cents"`
	Notes        string         `json:"notes,omitempty"`
	ApprovedAt   *time.Time     `json:"approved_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// EstimateLine is one priced line on an estimate.
type EstimateLine struct {
	ID          int64  `json:"id"`
	EstimateID  int64  `json:"estimate_id"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitCents   int64  `json:"unit_cents"`
}

// WorkOrder is an approved job to be scheduled and executed by a technician.
type WorkOrder struct {
	ID           int64           `json:"id"`
	CompanyID    int64           `json:"company_id"`
	ClientID     int64           `json:"client_id"`
	SiteID       int64           `json:"site_id"`
	EstimateID   *int64          `json:"estimate_id,omitempty"`
	TechnicianID *int64          `json:"technician_id,omitempty"`
	Status       WorkOrderStatus `json:"status"`
	Description  string          `json:"description"`
	ScheduledFor *time.Time      `json:"scheduled_for,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ScheduleEvent is a calendar entry for a technician: an inspection visit,
// a work order, or an ad-hoc block of time.
type ScheduleEvent struct {
	ID           int64     `json:"id"`
	CompanyID    int64     `json:"company_id"`
	TechnicianID int64     `json:"technician_id"`
	Type         EventType `json:"type"`
	ReferenceID  *int64    `json:"reference_id,omitempty"`
	Title        string    `json:"title"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is an authenticated browser or API session. The token itself is
// opaque; only its hash is persisted.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	CompanyID int64     `json:"company_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// PageInfo contains pagination metadata for list responses.
type PageInfo struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Count   int  `json:"count"`
	HasMore bool `json:"has_more"`
}
