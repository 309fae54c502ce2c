package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "chainlog/internal/errors"
	"chainlog/internal/hashing"
	"chainlog/internal/models"
)

// verifyBatchSize bounds how many entries are held in memory during a replay.
const verifyBatchSize = 500

// verifyService replays a tenant's chain and reports the first divergence.
type verifyService struct {
	db     *gorm.DB
	hasher *hashing.Hasher
}

// NewVerifyService creates a new VerifyServicer.
func NewVerifyService(db *gorm.DB, hasher *hashing.Hasher) VerifyServicer {
	return &verifyService{db: db, hasher: hasher}
}

// VerifyChain walks all entries for orgID in [from, to] in timestamp order,
// checking each stored previous hash against its predecessor and
// recomputing each entry hash. Tampering is reported as a structured
// result, never as an error. An empty range is trivially valid.
func (s *verifyService) VerifyChain(orgID string, from, to time.Time) (*VerifyResult, error) {
	if strings.TrimSpace(orgID) == "" {
		return nil, apperrors.ErrMissingOrg
	}
	if to.Before(from) {
		return nil, apperrors.ErrInvalidDateRange
	}

	var (
		expected string
		checked  int
		offset   int
		first    = true
	)

	for {
		var batch []models.AuditEntry
		err := s.db.
			Where("org_id = ? AND timestamp >= ? AND timestamp <= ?", orgID, from, to).
			Order("timestamp ASC, id ASC").
			Offset(offset).
			Limit(verifyBatchSize).
			Find(&batch).Error
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		for i := range batch {
			entry := &batch[i]

			if first {
				// The range may start mid-chain; seed the expectation from
				// the entry's actual timestamp-predecessor instead of
				// assuming the range begins at the chain head.
				expected, err = s.predecessorHash(orgID, entry)
				if err != nil {
					return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
				}
				first = false
			}

			if entry.PreviousHash != expected {
				return broken(entry, "chain broken: previous hash mismatch", checked), nil
			}

			recomputed, err := s.hasher.EntryHash(entry)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if !hashing.Equal(entry.Hash, recomputed) {
				return broken(entry, "entry hash mismatch: possible tampering", checked), nil
			}

			expected = entry.Hash
			checked++
		}

		if len(batch) < verifyBatchSize {
			break
		}
		offset += verifyBatchSize
	}

	return &VerifyResult{Valid: true, EntriesChecked: checked}, nil
}

// predecessorHash returns the hash of the entry immediately before the
// given one in (timestamp, id) order, or empty if it is the chain head.
func (s *verifyService) predecessorHash(orgID string, entry *models.AuditEntry) (string, error) {
	var pred models.AuditEntry
	err := s.db.Select("hash").
		Where("org_id = ? AND (timestamp < ? OR (timestamp = ? AND id < ?))",
			orgID, entry.Timestamp, entry.Timestamp, entry.ID).
		Order("timestamp DESC, id DESC").
		First(&pred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return pred.Hash, nil
}

func broken(entry *models.AuditEntry, reason string, checked int) *VerifyResult {
	at := entry.Timestamp
	return &VerifyResult{
		Valid:          false,
		BrokenAt:       &at,
		Reason:         reason,
		EntriesChecked: checked,
	}
}
