package services

import (
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "chainlog/internal/errors"
	"chainlog/internal/logger"
	"chainlog/internal/models"
)

// archiveService relocates entries past their retention deadline into the
// cold archive table. Entries travel verbatim; integrity fields are never
// recomputed.
type archiveService struct {
	db        *gorm.DB
	batchSize int
}

// NewArchiveService creates a new ArchiveServicer. batchSize bounds how
// many entries one sweep moves inside a single transaction.
func NewArchiveService(db *gorm.DB, batchSize int) ArchiveServicer {
	if batchSize < 1 {
		batchSize = 100
	}
	return &archiveService{db: db, batchSize: batchSize}
}

// SweepOrg moves up to one batch of expired entries for the org into cold
// storage and returns the number moved. Re-running with nothing expired is
// a no-op returning zero.
func (s *archiveService) SweepOrg(orgID string) (int, error) {
	if strings.TrimSpace(orgID) == "" {
		return 0, apperrors.ErrMissingOrg
	}

	now := time.Now().UTC().Truncate(time.Microsecond)

	var expired []models.AuditEntry
	err := s.db.
		Where("org_id = ? AND expires_at < ?", orgID, now).
		Order("expires_at ASC, id ASC").
		Limit(s.batchSize).
		Find(&expired).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	archived := make([]models.ArchivedAuditEntry, len(expired))
	ids := make([]string, len(expired))
	for i := range expired {
		archived[i] = expired[i].Archived(now)
		ids[i] = expired[i].ID
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&archived).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.AuditEntry{}).Error
	})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	logger.Get().Infow("archived expired audit entries",
		"org_id", orgID,
		"count", len(archived),
	)
	return len(archived), nil
}

// SweepAll runs one sweep batch for every org that currently has expired
// entries and returns the total number moved.
func (s *archiveService) SweepAll() (int, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	var orgIDs []string
	err := s.db.Model(&models.AuditEntry{}).
		Where("expires_at < ?", now).
		Distinct("org_id").
		Order("org_id ASC").
		Pluck("org_id", &orgIDs).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	total := 0
	for _, orgID := range orgIDs {
		count, err := s.SweepOrg(orgID)
		if err != nil {
			return total, err
		}
		total += count
	}
	return total, nil
}
