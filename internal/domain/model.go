// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture; it depends on nothing.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ─── User Types ─────────────────────────────────────────────────────────────

// Role distinguishes citizens from municipal administrators.
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleAdmin   Role = "admin"
)

// User is a registered citizen or administrator.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsAdmin reports whether the user may triage reports.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// ─── Report Types ───────────────────────────────────────────────────────────

// ReportStatus is the lifecycle state of a waste report.
type ReportStatus string

const (
	StatusPending    ReportStatus = "Pending"
	StatusInProgress ReportStatus = "In Progress"
	StatusCollected  ReportStatus = "Collected"
	StatusSorted     ReportStatus = "Sorted"
	StatusProcessed  ReportStatus = "Processed"
	StatusResolved   ReportStatus = "Resolved"
	StatusDisposed   ReportStatus = "Disposed"
)

// ReportStatuses lists every valid status in lifecycle order.
var ReportStatuses = []ReportStatus{
	StatusPending,
	StatusInProgress,
	StatusCollected,
	StatusSorted,
	StatusProcessed,
	StatusResolved,
	StatusDisposed,
}

// Valid reports whether s is a known status.
func (s ReportStatus) Valid() bool {
	for _, v := range ReportStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// InProgress reports whether the municipality has picked the report up
// without closing it.
func (s ReportStatus) InProgress() bool {
	switch s {
	case StatusInProgress, StatusCollected, StatusSorted, StatusProcessed:
		return true
	}
	return false
}

// Terminal reports whether the report is closed.
func (s ReportStatus) Terminal() bool {
	return s == StatusResolved || s == StatusDisposed
}

// DisposalMethod records how the waste of a disposed report was handled.
type DisposalMethod string

const (
	DisposalRecycled    DisposalMethod = "recycled"
	DisposalComposted   DisposalMethod = "composted"
	DisposalIncinerated DisposalMethod = "incinerated"
	DisposalLandfilled  DisposalMethod = "landfilled"
)

// Valid reports whether m is a known disposal method.
func (m DisposalMethod) Valid() bool {
	_, ok := disposalCredits[m]
	return ok
}

// Report is a citizen's photographed waste report.
type Report struct {
	ID             int64          `json:"id"`
	UserID         string         `json:"userId"`
	ReporterName   string         `json:"reporterName"`
	ReporterEmail  string         `json:"reporterEmail"`
	Description    string         `json:"description"`
	Address        string         `json:"address,omitempty"`
	Lat            *float64       `json:"lat,omitempty"`
	Lng            *float64       `json:"lng,omitempty"`
	PhotoURL       string         `json:"photoUrl,omitempty"`
	Status         ReportStatus   `json:"status"`
	DisposalMethod DisposalMethod `json:"disposalMethod,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// HasGPS reports whether both coordinates were supplied.
func (r Report) HasGPS() bool { return r.Lat != nil && r.Lng != nil }

// HasPhoto reports whether a photo reference is attached.
func (r Report) HasPhoto() bool { return r.PhotoURL != "" }

// ─── Utilities ──────────────────────────────────────────────────────────────

// SHA256Hex computes SHA-256 hash and returns hex string.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HumanSize formats bytes into human-readable string.
func HumanSize(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case b >= GB:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
