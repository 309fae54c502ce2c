package models

import (
	"time"

	"chainlog/internal/uuid"

	"gorm.io/gorm"
)

// AuditEntry is the atomic, immutable unit of the audit log. Entries for
// one organization form a hash chain in timestamp order: each entry's
// PreviousHash equals the Hash of its timestamp-predecessor, or is empty
// for the first entry. Entries are never updated in place; the sweeper
// relocates expired entries wholesale into the archive table.
type AuditEntry struct {
	ID    string `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID string `gorm:"not null;index:idx_audit_entries_org_ts,priority:1" json:"org_id"`

	// Actor. Email is kept in the structured store for accountability but
	// is stripped by the log-sink redaction profile before leaving the process.
	ActorID    string `gorm:"index" json:"actor_id,omitempty"`
	ActorName  string `json:"actor_name,omitempty"`
	ActorEmail string `json:"actor_email,omitempty"`

	// Classification.
	Category Category `gorm:"not null;index" json:"category"`
	Action   string   `gorm:"not null" json:"action"`
	Severity Severity `gorm:"not null" json:"severity"`

	// Subject.
	ResourceType string `gorm:"index" json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	ResourceName string `json:"resource_name,omitempty"`

	// Change payload, stored as redacted JSON text.
	BeforeState   string `json:"before_state,omitempty"`
	AfterState    string `json:"after_state,omitempty"`
	ChangedFields string `json:"changed_fields,omitempty"`

	// Context.
	IPAddress    string  `json:"ip_address,omitempty"`
	UserAgent    string  `json:"user_agent,omitempty"`
	RequestID    string  `json:"request_id,omitempty"`
	Channel      Channel `gorm:"not null" json:"channel"`
	Success      bool    `json:"success"`
	ErrorMessage string  `json:"error_message,omitempty"`
	Metadata     string  `json:"metadata,omitempty"`

	// Integrity. Hash covers every other field including PreviousHash and
	// is never recomputed after write.
	Hash         string `gorm:"not null" json:"hash"`
	PreviousHash string `json:"previous_hash,omitempty"`

	// Lifecycle.
	Timestamp time.Time `gorm:"not null;index:idx_audit_entries_org_ts,priority:2" json:"timestamp"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
}

// BeforeCreate hook generates a UUIDv7 for new entries. The chain writer
// normally assigns the ID itself before hashing so the ID is covered by
// the entry hash; this is a safety net for direct inserts in fixtures.
func (e *AuditEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New()
	}
	return nil
}

// ArchivedAuditEntry is a cold copy of an expired AuditEntry. All fields,
// including the integrity fields, travel unchanged from the hot store;
// only ArchivedAt is added.
type ArchivedAuditEntry struct {
	ID    string `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID string `gorm:"not null;index:idx_audit_archive_org_ts,priority:1" json:"org_id"`

	ActorID    string `json:"actor_id,omitempty"`
	ActorName  string `json:"actor_name,omitempty"`
	ActorEmail string `json:"actor_email,omitempty"`

	Category Category `gorm:"not null" json:"category"`
	Action   string   `gorm:"not null" json:"action"`
	Severity Severity `gorm:"not null" json:"severity"`

	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	ResourceName string `json:"resource_name,omitempty"`

	BeforeState   string `json:"before_state,omitempty"`
	AfterState    string `json:"after_state,omitempty"`
	ChangedFields string `json:"changed_fields,omitempty"`

	IPAddress    string  `json:"ip_address,omitempty"`
	UserAgent    string  `json:"user_agent,omitempty"`
	RequestID    string  `json:"request_id,omitempty"`
	Channel      Channel `gorm:"not null" json:"channel"`
	Success      bool    `json:"success"`
	ErrorMessage string  `json:"error_message,omitempty"`
	Metadata     string  `json:"metadata,omitempty"`

	Hash         string `gorm:"not null" json:"hash"`
	PreviousHash string `json:"previous_hash,omitempty"`

	Timestamp  time.Time `gorm:"not null;index:idx_audit_archive_org_ts,priority:2" json:"timestamp"`
	ExpiresAt  time.Time `gorm:"not null" json:"expires_at"`
	ArchivedAt time.Time `gorm:"not null" json:"archived_at"`
}

// TableName overrides the GORM default pluralization.
func (ArchivedAuditEntry) TableName() string { return "audit_archive" }

// Archived returns the cold copy of an entry, unchanged except for the
// archival timestamp.
func (e *AuditEntry) Archived(at time.Time) ArchivedAuditEntry {
	return ArchivedAuditEntry{
		ID:            e.ID,
		OrgID:         e.OrgID,
		ActorID:       e.ActorID,
		ActorName:     e.ActorName,
		ActorEmail:    e.ActorEmail,
		Category:      e.Category,
		Action:        e.Action,
		Severity:      e.Severity,
		ResourceType:  e.ResourceType,
		ResourceID:    e.ResourceID,
		ResourceName:  e.ResourceName,
		BeforeState:   e.BeforeState,
		AfterState:    e.AfterState,
		ChangedFields: e.ChangedFields,
		IPAddress:     e.IPAddress,
		UserAgent:     e.UserAgent,
		RequestID:     e.RequestID,
		Channel:       e.Channel,
		Success:       e.Success,
		ErrorMessage:  e.ErrorMessage,
		Metadata:      e.Metadata,
		Hash:          e.Hash,
		PreviousHash:  e.PreviousHash,
		Timestamp:     e.Timestamp,
		ExpiresAt:     e.ExpiresAt,
		ArchivedAt:    at,
	}
}
