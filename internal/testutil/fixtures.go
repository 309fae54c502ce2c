package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"chainlog/internal/models"

	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestEntry inserts an audit entry directly, bypassing the chain
// writer. The hash fields are placeholders; use the entry service when a
// test needs a verifiable chain.
func CreateTestEntry(t *testing.T, db *gorm.DB, orgID string) *models.AuditEntry {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return CreateTestEntryAt(t, db, orgID, now, now.AddDate(0, 0, 90))
}

// CreateTestEntryAt inserts an audit entry with explicit timestamps.
func CreateTestEntryAt(t *testing.T, db *gorm.DB, orgID string, timestamp, expiresAt time.Time) *models.AuditEntry {
	t.Helper()

	n := nextID()
	entry := &models.AuditEntry{
		OrgID:        orgID,
		ActorID:      fmt.Sprintf("user-%d", n),
		ActorName:    fmt.Sprintf("Test User %d", n),
		Category:     models.CategoryDataAccess,
		Action:       models.ActionRead,
		Severity:     models.SeverityInfo,
		ResourceType: "property",
		ResourceID:   fmt.Sprintf("prop-%d", n),
		ResourceName: fmt.Sprintf("Test Property %d", n),
		Channel:      models.ChannelAPI,
		Success:      true,
		Hash:         fmt.Sprintf("hash-%d", n),
		Timestamp:    timestamp,
		ExpiresAt:    expiresAt,
	}
	if err := db.Create(entry).Error; err != nil {
		t.Fatalf("failed to create test audit entry: %v", err)
	}
	return entry
}

// CountEntries returns the number of hot entries for an org.
func CountEntries(t *testing.T, db *gorm.DB, orgID string) int64 {
	t.Helper()

	var count int64
	if err := db.Model(&models.AuditEntry{}).Where("org_id = ?", orgID).Count(&count).Error; err != nil {
		t.Fatalf("failed to count audit entries: %v", err)
	}
	return count
}

// CountArchived returns the number of archived entries for an org.
func CountArchived(t *testing.T, db *gorm.DB, orgID string) int64 {
	t.Helper()

	var count int64
	if err := db.Model(&models.ArchivedAuditEntry{}).Where("org_id = ?", orgID).Count(&count).Error; err != nil {
		t.Fatalf("failed to count archived entries: %v", err)
	}
	return count
}
