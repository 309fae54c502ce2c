package services

import (
	"time"

	"chainlog/internal/models"
	"chainlog/internal/pagination"
)

// AppendInput carries one audit event into the chain writer. Metadata and
// the change snapshots are redacted before persistence.
type AppendInput struct {
	OrgID string

	ActorID    string
	ActorName  string
	ActorEmail string

	Category models.Category
	Action   string
	Severity models.Severity

	ResourceType string
	ResourceID   string
	ResourceName string

	Before        map[string]any
	After         map[string]any
	ChangedFields []string

	IPAddress    string
	UserAgent    string
	RequestID    string
	Channel      models.Channel
	Success      bool
	ErrorMessage string
	Metadata     map[string]any

	// RetentionDays overrides the category default when positive.
	RetentionDays int
}

// AppendResult reports the outcome of a chain append. Recorded is false
// when the store rejected the entry after all retries; the caller's
// business operation proceeds regardless.
type AppendResult struct {
	EntryID  string `json:"entry_id,omitempty"`
	Recorded bool   `json:"recorded"`
}

// EntryServicer defines the contract for the chain writer.
type EntryServicer interface {
	Append(in AppendInput) (*AppendResult, error)
}

// VerifyResult reports the outcome of a chain replay. BrokenAt is the
// timestamp of the first diverging entry.
type VerifyResult struct {
	Valid          bool       `json:"valid"`
	BrokenAt       *time.Time `json:"broken_at,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	EntriesChecked int        `json:"entries_checked"`
}

// VerifyServicer defines the contract for chain verification.
type VerifyServicer interface {
	VerifyChain(orgID string, from, to time.Time) (*VerifyResult, error)
}

// ArchiveServicer defines the contract for the retention sweeper.
type ArchiveServicer interface {
	SweepOrg(orgID string) (int, error)
	SweepAll() (int, error)
}

// SearchFilter holds optional filter parameters for searching the log.
type SearchFilter struct {
	OrgID        string
	ActorID      string
	Category     models.Category
	Action       string
	Severity     models.Severity
	ResourceType string
	ResourceID   string
	IPAddress    string
	Success      *bool
	Query        string
	FromDate     *time.Time
	ToDate       *time.Time
}

// ActorCount is one row of the top-actors breakdown.
type ActorCount struct {
	ActorID   string `json:"actor_id"`
	ActorName string `json:"actor_name"`
	Count     int64  `json:"count"`
}

// ResourceTypeCount is one row of the top-resource-types breakdown.
type ResourceTypeCount struct {
	ResourceType string `json:"resource_type"`
	Count        int64  `json:"count"`
}

// AuditStats aggregates log activity over a date window.
type AuditStats struct {
	TotalEntries     int64               `json:"total_entries"`
	ByCategory       map[string]int64    `json:"by_category"`
	ByAction         map[string]int64    `json:"by_action"`
	BySeverity       map[string]int64    `json:"by_severity"`
	SuccessRate      float64             `json:"success_rate"`
	TopActors        []ActorCount        `json:"top_actors"`
	TopResourceTypes []ResourceTypeCount `json:"top_resource_types"`
}

// ExportResult carries a serialized export payload and its suggested filename.
type ExportResult struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// QueryServicer defines the contract for search, statistics, and export.
type QueryServicer interface {
	GetEntry(orgID, entryID string) (*models.AuditEntry, error)
	Search(filter SearchFilter, page pagination.PageRequest) (*pagination.PageResponse[models.AuditEntry], error)
	Stats(orgID string, from, to time.Time) (*AuditStats, error)
	Export(filter SearchFilter, format string) (*ExportResult, error)
}
