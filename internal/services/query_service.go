package services

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "chainlog/internal/errors"
	"chainlog/internal/models"
	"chainlog/internal/pagination"
)

// maxExportRows bounds a single export payload.
const maxExportRows = 10000

// queryService implements filtered search, aggregate statistics, and
// export over the hot audit log.
type queryService struct {
	db *gorm.DB
}

// NewQueryService creates a new QueryServicer.
func NewQueryService(db *gorm.DB) QueryServicer {
	return &queryService{db: db}
}

// GetEntry returns a single entry scoped to the org, so one tenant can
// never read another tenant's entries by guessing IDs.
func (s *queryService) GetEntry(orgID, entryID string) (*models.AuditEntry, error) {
	if strings.TrimSpace(orgID) == "" {
		return nil, apperrors.ErrMissingOrg
	}

	var entry models.AuditEntry
	err := s.db.Where("org_id = ? AND id = ?", orgID, entryID).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &entry, nil
}

// Search returns a page of entries matching the filter, newest first.
func (s *queryService) Search(filter SearchFilter, page pagination.PageRequest) (*pagination.PageResponse[models.AuditEntry], error) {
	if err := validateFilter(&filter); err != nil {
		return nil, err
	}
	page.Defaults()

	base := s.applyFilter(s.db.Model(&models.AuditEntry{}), filter)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var entries []models.AuditEntry
	err := base.Order("timestamp DESC, id DESC").Scopes(pagination.Paginate(page)).Find(&entries).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(entries, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// Stats aggregates log activity for an org over a date window.
func (s *queryService) Stats(orgID string, from, to time.Time) (*AuditStats, error) {
	if strings.TrimSpace(orgID) == "" {
		return nil, apperrors.ErrMissingOrg
	}
	if to.Before(from) {
		return nil, apperrors.ErrInvalidDateRange
	}

	base := func() *gorm.DB {
		return s.db.Model(&models.AuditEntry{}).
			Where("org_id = ? AND timestamp >= ? AND timestamp <= ?", orgID, from, to)
	}

	stats := &AuditStats{}

	if err := base().Count(&stats.TotalEntries).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var err error
	if stats.ByCategory, err = s.groupCount(base(), "category"); err != nil {
		return nil, err
	}
	if stats.ByAction, err = s.groupCount(base(), "action"); err != nil {
		return nil, err
	}
	if stats.BySeverity, err = s.groupCount(base(), "severity"); err != nil {
		return nil, err
	}

	if stats.TotalEntries > 0 {
		var succeeded int64
		if err := base().Where("success = ?", true).Count(&succeeded).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		stats.SuccessRate = float64(succeeded) / float64(stats.TotalEntries)
	}

	err = base().
		Select("actor_id, MAX(actor_name) AS actor_name, COUNT(*) AS count").
		Where("actor_id <> ''").
		Group("actor_id").
		Order("COUNT(*) DESC").
		Limit(10).
		Scan(&stats.TopActors).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	err = base().
		Select("resource_type, COUNT(*) AS count").
		Where("resource_type <> ''").
		Group("resource_type").
		Order("COUNT(*) DESC").
		Limit(10).
		Scan(&stats.TopResourceTypes).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return stats, nil
}

// Export serializes all entries matching the filter, oldest first, as JSON
// or CSV. The payload is bounded by maxExportRows.
func (s *queryService) Export(filter SearchFilter, format string) (*ExportResult, error) {
	if err := validateFilter(&filter); err != nil {
		return nil, err
	}
	if format != "json" && format != "csv" {
		return nil, apperrors.ErrInvalidFormat
	}

	var entries []models.AuditEntry
	err := s.applyFilter(s.db.Model(&models.AuditEntry{}), filter).
		Order("timestamp ASC, id ASC").
		Limit(maxExportRows).
		Find(&entries).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	filename := fmt.Sprintf("audit-export-%s-%s.%s",
		filter.OrgID, time.Now().UTC().Format("20060102-150405"), format)

	if format == "json" {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return &ExportResult{Filename: filename, ContentType: "application/json", Data: data}, nil
	}

	data, err := entriesToCSV(entries)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &ExportResult{Filename: filename, ContentType: "text/csv", Data: data}, nil
}

func validateFilter(filter *SearchFilter) error {
	if strings.TrimSpace(filter.OrgID) == "" {
		return apperrors.ErrMissingOrg
	}
	if filter.Category != "" && !models.ValidCategory(filter.Category) {
		return apperrors.ErrInvalidCategory
	}
	if filter.Severity != "" && !models.ValidSeverity(filter.Severity) {
		return apperrors.ErrInvalidSeverity
	}
	if filter.FromDate != nil && filter.ToDate != nil && filter.ToDate.Before(*filter.FromDate) {
		return apperrors.ErrInvalidDateRange
	}
	return nil
}

func (s *queryService) applyFilter(db *gorm.DB, filter SearchFilter) *gorm.DB {
	db = db.Where("org_id = ?", filter.OrgID)

	if filter.ActorID != "" {
		db = db.Where("actor_id = ?", filter.ActorID)
	}
	if filter.Category != "" {
		db = db.Where("category = ?", filter.Category)
	}
	if filter.Action != "" {
		db = db.Where("action = ?", filter.Action)
	}
	if filter.Severity != "" {
		db = db.Where("severity = ?", filter.Severity)
	}
	if filter.ResourceType != "" {
		db = db.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		db = db.Where("resource_id = ?", filter.ResourceID)
	}
	if filter.IPAddress != "" {
		db = db.Where("ip_address = ?", filter.IPAddress)
	}
	if filter.Success != nil {
		db = db.Where("success = ?", *filter.Success)
	}
	if filter.FromDate != nil {
		db = db.Where("timestamp >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		db = db.Where("timestamp <= ?", *filter.ToDate)
	}
	if filter.Query != "" {
		pattern := "%" + escapeLike(strings.ToLower(filter.Query)) + "%"
		db = db.Where(
			`(LOWER(action) LIKE ? ESCAPE '\' OR LOWER(resource_name) LIKE ? ESCAPE '\' OR LOWER(error_message) LIKE ? ESCAPE '\')`,
			pattern, pattern, pattern,
		)
	}
	return db
}

// escapeLike escapes LIKE metacharacters so free-text search is a literal
// substring match rather than user-controlled pattern matching.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *queryService) groupCount(base *gorm.DB, column string) (map[string]int64, error) {
	type row struct {
		K string `gorm:"column:k"`
		C int64  `gorm:"column:c"`
	}
	var rows []row
	err := base.Select(column + " AS k, COUNT(*) AS c").Group(column).Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.K] = r.C
	}
	return out, nil
}

var csvHeader = []string{
	"id", "org_id", "timestamp", "category", "action", "severity",
	"actor_id", "actor_name", "actor_email",
	"resource_type", "resource_id", "resource_name",
	"ip_address", "channel", "success", "error_message",
	"hash", "previous_hash",
}

// entriesToCSV renders entries as RFC 4180 CSV: encoding/csv quote-wraps
// any field containing a delimiter, quote, or newline and doubles internal
// quotes.
func entriesToCSV(entries []models.AuditEntry) ([]byte, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for i := range entries {
		e := &entries[i]
		record := []string{
			e.ID,
			e.OrgID,
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			string(e.Category),
			e.Action,
			string(e.Severity),
			e.ActorID,
			e.ActorName,
			e.ActorEmail,
			e.ResourceType,
			e.ResourceID,
			e.ResourceName,
			e.IPAddress,
			string(e.Channel),
			strconv.FormatBool(e.Success),
			e.ErrorMessage,
			e.Hash,
			e.PreviousHash,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}
