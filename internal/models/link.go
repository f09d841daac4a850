package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Link kinds and provenance markers.
const (
	LinkKindMention = "mention"
	LinkKindRelated = "related"

	MetadataOrigin     = "origin"
	OriginMarkdownAuto = "markdown-auto"
)

// Link is a directed edge in the skill graph. Exactly one of SourceSkillID and
// SourceResourceID is set; the same holds for the target pair.
type Link struct {
	ID               string    `db:"id" json:"id"`
	SourceSkillID    *string   `db:"source_skill_id" json:"sourceSkillId"`
	SourceResourceID *string   `db:"source_resource_id" json:"sourceResourceId"`
	TargetSkillID    *string   `db:"target_skill_id" json:"targetSkillId"`
	TargetResourceID *string   `db:"target_resource_id" json:"targetResourceId"`
	Kind             string    `db:"kind" json:"kind"`
	Metadata         Metadata  `db:"metadata" json:"metadata"`
	CreatedByUserID  *string   `db:"created_by_user_id" json:"createdByUserId"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

// IsAuto reports whether the edge was derived from markdown mentions.
func (l Link) IsAuto() bool {
	return l.Metadata.Origin() == OriginMarkdownAuto
}

// Validate checks the exactly-one-of invariant on both ends of the edge.
func (l Link) Validate() error {
	if (l.SourceSkillID == nil) == (l.SourceResourceID == nil) {
		return fmt.Errorf("link %s: exactly one source must be set", l.ID)
	}
	if (l.TargetSkillID == nil) == (l.TargetResourceID == nil) {
		return fmt.Errorf("link %s: exactly one target must be set", l.ID)
	}
	return nil
}

// Metadata is a free-form JSON object column.
type Metadata map[string]any

// Origin returns the provenance marker, or "" when absent.
func (m Metadata) Origin() string {
	s, _ := m[MetadataOrigin].(string)
	return s
}

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("metadata: unsupported type %T", src)
	}
	out := Metadata{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
	}
	*m = out
	return nil
}
