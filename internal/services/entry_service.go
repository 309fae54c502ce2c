package services

import (
	"encoding/json"
	"errors"
	"hash/fnv"
	"math/rand"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	apperrors "chainlog/internal/errors"
	"chainlog/internal/hashing"
	"chainlog/internal/logger"
	"chainlog/internal/models"
	"chainlog/internal/redact"
	"chainlog/internal/uuid"
)

const (
	appendAttempts    = 3
	appendLockStripes = 64
)

// entryService is the chain writer. Appends for the same org are
// serialized in-process with a striped mutex so concurrent handlers in a
// single instance cannot read a stale previous hash. Across instances the
// stale read is still possible and tolerated: the verifier walks entries
// in timestamp order, so a chain written from a stale read remains valid
// as long as each stored previous hash matches the timestamp-predecessor.
type entryService struct {
	db       *gorm.DB
	hasher   *hashing.Hasher
	orgLocks [appendLockStripes]sync.Mutex
}

// NewEntryService creates a new EntryServicer.
func NewEntryService(db *gorm.DB, hasher *hashing.Hasher) EntryServicer {
	return &entryService{db: db, hasher: hasher}
}

// Append validates, redacts, hashes, and persists one audit entry.
// Validation problems are returned synchronously; store failures are
// retried with small random backoff and, on exhaustion, logged and
// reported as Recorded=false rather than returned as an error. Audit
// failures must never abort the business operation being audited.
func (s *entryService) Append(in AppendInput) (*AppendResult, error) {
	if err := validateAppend(&in); err != nil {
		return nil, err
	}

	retention := models.RetentionDays(in.Category)
	if in.RetentionDays > 0 {
		retention = in.RetentionDays
	}

	entry := &models.AuditEntry{
		ID:            uuid.New(),
		OrgID:         in.OrgID,
		ActorID:       in.ActorID,
		ActorName:     in.ActorName,
		ActorEmail:    in.ActorEmail,
		Category:      in.Category,
		Action:        in.Action,
		Severity:      in.Severity,
		ResourceType:  in.ResourceType,
		ResourceID:    in.ResourceID,
		ResourceName:  in.ResourceName,
		BeforeState:   marshalRedacted(redact.ForStorage(in.Before)),
		AfterState:    marshalRedacted(redact.ForStorage(in.After)),
		ChangedFields: marshalFields(in.ChangedFields),
		IPAddress:     in.IPAddress,
		UserAgent:     in.UserAgent,
		RequestID:     in.RequestID,
		Channel:       in.Channel,
		Success:       in.Success,
		ErrorMessage:  in.ErrorMessage,
		Metadata:      marshalRedacted(redact.ForStorage(in.Metadata)),
	}

	lock := &s.orgLocks[s.stripe(in.OrgID)]
	lock.Lock()
	var insertErr error
	for attempt := 0; attempt < appendAttempts; attempt++ {
		if insertErr = s.tryInsert(entry, retention); insertErr == nil {
			break
		}
		if attempt < appendAttempts-1 {
			time.Sleep(time.Duration(10+rand.Intn(40)) * time.Millisecond)
		}
	}
	lock.Unlock()

	if insertErr != nil {
		logger.Get().Errorw("failed to record audit entry after retries",
			"error", insertErr,
			"org_id", in.OrgID,
			"action", in.Action,
			"resource_type", in.ResourceType,
		)
		return &AppendResult{Recorded: false}, nil
	}

	s.checkStaleRead(entry)

	if models.PrivilegedAction(entry.Action) {
		logger.Get().Warnw("privileged action audited",
			"org_id", entry.OrgID,
			"entry_id", entry.ID,
			"action", entry.Action,
			"actor_id", entry.ActorID,
			"resource_type", entry.ResourceType,
			"resource_id", entry.ResourceID,
			"metadata", redact.ForLogSink(in.Metadata),
		)
	}

	return &AppendResult{EntryID: entry.ID, Recorded: true}, nil
}

// tryInsert stamps the entry, reads the latest hash for the org, links and
// hashes the entry, and inserts it. The timestamp is assigned here, under
// the org lock, so per-org timestamp order matches insertion order.
// Microsecond truncation keeps the hashed timestamp identical to what
// Postgres stores and returns.
func (s *entryService) tryInsert(entry *models.AuditEntry, retention int) error {
	now := time.Now().UTC().Truncate(time.Microsecond)
	entry.Timestamp = now
	entry.ExpiresAt = now.AddDate(0, 0, retention)

	prev, err := s.previousHash(entry.OrgID)
	if err != nil {
		return err
	}
	entry.PreviousHash = prev

	hash, err := s.hasher.EntryHash(entry)
	if err != nil {
		return err
	}
	entry.Hash = hash

	return s.db.Create(entry).Error
}

// previousHash returns the hash of the most recent entry for the org, or
// empty when the chain is empty.
func (s *entryService) previousHash(orgID string) (string, error) {
	var last models.AuditEntry
	err := s.db.Select("hash").
		Where("org_id = ?", orgID).
		Order("timestamp DESC, id DESC").
		First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return last.Hash, nil
}

// checkStaleRead detects whether another writer appended for the same org
// between our previous-hash read and our insert. The write is kept either
// way; the warning gives operators a signal in multi-instance deployments
// where the in-process lock does not cover all writers.
func (s *entryService) checkStaleRead(entry *models.AuditEntry) {
	var latest models.AuditEntry
	err := s.db.Select("id").
		Where("org_id = ?", entry.OrgID).
		Order("timestamp DESC, id DESC").
		First(&latest).Error
	if err != nil {
		return
	}
	if latest.ID != entry.ID {
		logger.Get().Warnw("concurrent audit append detected, chain is verified in timestamp order",
			"org_id", entry.OrgID,
			"entry_id", entry.ID,
			"latest_id", latest.ID,
		)
	}
}

func (s *entryService) stripe(orgID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(orgID))
	return h.Sum32() % appendLockStripes
}

func validateAppend(in *AppendInput) error {
	if strings.TrimSpace(in.OrgID) == "" {
		return apperrors.ErrMissingOrg
	}
	if !models.ValidCategory(in.Category) {
		return apperrors.ErrInvalidCategory
	}
	if !models.ValidAction(in.Action) {
		return apperrors.ErrInvalidAction
	}
	if in.Severity == "" {
		in.Severity = models.SeverityInfo
	} else if !models.ValidSeverity(in.Severity) {
		return apperrors.ErrInvalidSeverity
	}
	if in.Channel == "" {
		in.Channel = models.ChannelSystem
	} else if !models.ValidChannel(in.Channel) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Unknown source channel")
	}
	if strings.TrimSpace(in.ResourceType) == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Resource type is required")
	}
	if in.RetentionDays < 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Retention days cannot be negative")
	}
	return nil
}

// marshalRedacted serializes an already-redacted map to JSON text for
// storage. Marshal failures are logged and stored as an empty object so
// the write itself still succeeds.
func marshalRedacted(m map[string]any) string {
	if m == nil {
		return ""
	}
	data, err := json.Marshal(m)
	if err != nil {
		logger.Get().Errorw("failed to marshal audit payload", "error", err)
		return "{}"
	}
	return string(data)
}

func marshalFields(fields []string) string {
	if len(fields) == 0 {
		return ""
	}
	data, err := json.Marshal(fields)
	if err != nil {
		logger.Get().Errorw("failed to marshal changed fields", "error", err)
		return "[]"
	}
	return string(data)
}
