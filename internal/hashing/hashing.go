// Package hashing computes and verifies the keyed integrity hashes that
// link audit entries into a per-organization chain.
package hashing

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	apperrors "chainlog/internal/errors"
	"chainlog/internal/models"
)

// Hasher computes HMAC-SHA256 digests over canonical entry serializations.
// The secret is provided at construction and read-only afterwards.
type Hasher struct {
	secret []byte
}

// New creates a Hasher. The secret must be non-empty; callers are expected
// to validate configuration at startup so this never fails in production.
func New(secret string) (*Hasher, error) {
	if secret == "" {
		return nil, apperrors.ErrHashSecretMissing
	}
	return &Hasher{secret: []byte(secret)}, nil
}

// EntryHash computes the integrity hash of an entry. Every stored field
// except Hash itself participates, including PreviousHash, so any
// after-the-fact mutation of the entry or reordering of the chain changes
// the recomputed digest.
//
// Timestamps are serialized as RFC 3339 in UTC. The chain writer truncates
// them to microsecond precision before hashing so the digest can be
// recomputed from the stored row (Postgres keeps microseconds).
func (h *Hasher) EntryHash(e *models.AuditEntry) (string, error) {
	payload := map[string]any{
		"id":             e.ID,
		"org_id":         e.OrgID,
		"actor_id":       e.ActorID,
		"actor_name":     e.ActorName,
		"actor_email":    e.ActorEmail,
		"category":       string(e.Category),
		"action":         e.Action,
		"severity":       string(e.Severity),
		"resource_type":  e.ResourceType,
		"resource_id":    e.ResourceID,
		"resource_name":  e.ResourceName,
		"before_state":   e.BeforeState,
		"after_state":    e.AfterState,
		"changed_fields": e.ChangedFields,
		"ip_address":     e.IPAddress,
		"user_agent":     e.UserAgent,
		"request_id":     e.RequestID,
		"channel":        string(e.Channel),
		"success":        e.Success,
		"error_message":  e.ErrorMessage,
		"metadata":       e.Metadata,
		"previous_hash":  e.PreviousHash,
		"timestamp":      e.Timestamp.UTC().Format(time.RFC3339Nano),
		"expires_at":     e.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}

	canonical, err := Canonicalize(payload)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize entry: %w", err)
	}

	mac := hmac.New(sha256.New, h.secret)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Equal compares a stored digest against a recomputed one in constant time.
func Equal(stored, recomputed string) bool {
	return hmac.Equal([]byte(stored), []byte(recomputed))
}

// Canonicalize serializes a value as JSON with object keys sorted
// lexicographically at every nesting level. Array order is preserved.
// Two structurally equal values always produce identical bytes.
func Canonicalize(v any) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeValue(&buf, normalized); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// normalize round-trips the value through encoding/json so the writer only
// has to handle JSON types. Numbers are kept as json.Number to avoid
// float formatting drift.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func writeValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(val.String())
	case string:
		return writeString(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeValue(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported type %T in canonical serialization", v)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	encoded, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(encoded)
	return nil
}
