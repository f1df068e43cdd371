package leads

import (
	"time"
)

// ID tipe untuk Lead
type LeadID string

// UpsertStatus enum
type UpsertStatus string

const (
	StatusCreated UpsertStatus = "created"
	StatusUpdated UpsertStatus = "updated"
)

// Attribution value object (marketing tags captured at signup)
type Attribution struct {
	Source      string `json:"source,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
}

// Aggregate Root: Lead
type Lead struct {
	ID                LeadID      `json:"id"`
	Name              string      `json:"name"`
	Email             string      `json:"email"`
	IPAddress         string      `json:"ip_address,omitempty"`
	EbookDownloaded   bool        `json:"ebook_downloaded"`
	PortalAccessed    bool        `json:"portal_accessed"`
	ReportsDownloaded bool        `json:"reports_downloaded"`
	AnalysisCompleted bool        `json:"analysis_completed"`
	ViolationsFound   int         `json:"violations_found"`
	CallBooked        bool        `json:"call_booked"`
	Attribution       Attribution `json:"attribution"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}
