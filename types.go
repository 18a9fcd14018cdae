package kilncat

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Principal is the verified identity derived from a bearer token for one
// request. It is never persisted by this layer.
type Principal struct {
	SubjectID string
	Email     string
	IsAdmin   bool
}

// Stage is the firing stage of a piece or the stage a photo was taken at.
type Stage string

const (
	StageGreenware Stage = "greenware"
	StageBisque    Stage = "bisque"
	StageFinal     Stage = "final"
)

func (s Stage) IsValid() bool {
	switch s {
	case StageGreenware, StageBisque, StageFinal:
		return true
	default:
		return false
	}
}

func ParseStage(s string) (Stage, error) {
	stage := Stage(s)
	if !stage.IsValid() {
		return "", fmt.Errorf("invalid stage: %s (valid stages: greenware, bisque, final)", s)
	}
	return stage, nil
}

// MeasurementDetail is one height/width/depth measurement set in millimeters.
type MeasurementDetail struct {
	Height *float64 `json:"height,omitempty"`
	Width  *float64 `json:"width,omitempty"`
	Depth  *float64 `json:"depth,omitempty"`
}

// Measurements holds per-stage measurements. Clay shrinks between stages, so
// each stage gets its own set.
type Measurements struct {
	Greenware *MeasurementDetail `json:"greenware,omitempty"`
	Bisque    *MeasurementDetail `json:"bisque,omitempty"`
	Final     *MeasurementDetail `json:"final,omitempty"`
}

// Item is a catalogued pottery piece. Owned exclusively by OwnerID.
type Item struct {
	ID           string        `json:"id"`
	OwnerID      string        `json:"owner_id"`
	Title        string        `json:"title"`
	ClayType     string        `json:"clay_type"`
	Glaze        string        `json:"glaze,omitempty"`
	Location     string        `json:"location"`
	Notes        string        `json:"notes,omitempty"`
	CurrentStage Stage         `json:"current_stage"`
	Measurements *Measurements `json:"measurements,omitempty"`
	// CreatedAt is stored in UTC; CreatedTZ preserves the client's original
	// offset or zone name for display.
	CreatedAt time.Time `json:"created_at"`
	CreatedTZ string    `json:"created_tz,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Photo is one photo of an item. Its lifetime is bounded by the parent item:
// deleting the item deletes all its photos' records and blobs.
type Photo struct {
	ID          string    `json:"id"`
	ItemID      string    `json:"item_id"`
	OwnerID     string    `json:"owner_id"`
	Stage       Stage     `json:"stage"`
	Note        string    `json:"note,omitempty"`
	IsPrimary   bool      `json:"is_primary"`
	FileName    string    `json:"file_name,omitempty"`
	BlobRef     string    `json:"-"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// PhotoView is the client-facing shape of a Photo: the blob ref is replaced
// by a freshly issued signed URL.
type PhotoView struct {
	Photo
	SignedURL string `json:"signed_url,omitempty"`
}

// ItemView is an Item with its photos rendered as PhotoViews.
type ItemView struct {
	Item
	Photos []PhotoView `json:"photos"`
}

// CreateItem holds the caller-supplied fields for a new item.
type CreateItem struct {
	Title        string
	ClayType     string
	Glaze        string
	Location     string
	Notes        string
	CurrentStage Stage
	Measurements *Measurements
	// CreatedAt may carry a non-UTC offset from the client; it is normalized
	// to UTC on write and the original zone recorded in CreatedTZ.
	CreatedAt time.Time
}

// UpdateItem holds the mutable item fields. Nil pointers mean "leave as is".
type UpdateItem struct {
	Title        *string
	ClayType     *string
	Glaze        *string
	Location     *string
	Notes        *string
	CurrentStage *Stage
	Measurements *Measurements
}

// CreatePhoto holds the caller-supplied fields for a photo upload.
type CreatePhoto struct {
	Stage       Stage
	Note        string
	FileName    string
	ContentType string
}

// UpdatePhoto holds the mutable photo metadata fields. Blob content is
// immutable once uploaded.
type UpdatePhoto struct {
	Stage *Stage
	Note  *string
}

// DeleteItemResult reports the outcome of a cascade delete. OrphanBlobs
// lists blob refs whose deletion failed; the metadata for those photos is
// gone, so the blobs are unreachable and await the reconciliation sweep.
type DeleteItemResult struct {
	OrphanBlobs []string `json:"orphan_blobs,omitempty"`
}

// Profile is the synced user profile record. IsAdmin here is the single
// elevated flag consulted when building a Principal.
type Profile struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	IsAdmin     bool      `json:"is_admin"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	LastLoginAt time.Time `json:"last_login_at"`
}

// Tables holds configurable table names for metadata storage.
// This allows multi-tenant deployments to use different table names.
type Tables struct {
	Items    string `mapstructure:"items"`
	Photos   string `mapstructure:"photos"`
	Profiles string `mapstructure:"profiles"`
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set and valid.
func (t Tables) Validate() error {
	for _, pair := range []struct {
		label string
		name  string
	}{
		{"items", t.Items},
		{"photos", t.Photos},
		{"profiles", t.Profiles},
	} {
		if pair.name == "" {
			return fmt.Errorf("validate tables: %s table name cannot be empty", pair.label)
		}
		if !IsValidTableName(pair.name) {
			return fmt.Errorf("validate tables: invalid %s table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", pair.label, pair.name)
		}
	}
	return nil
}

// Validate checks the fields required to create an item.
func (c CreateItem) Validate() error {
	if c.Title == "" {
		return errors.New("title cannot be empty")
	}
	if c.ClayType == "" {
		return errors.New("clay type cannot be empty")
	}
	if c.Location == "" {
		return errors.New("location cannot be empty")
	}
	if c.CurrentStage != "" && !c.CurrentStage.IsValid() {
		return fmt.Errorf("invalid stage: %s", c.CurrentStage)
	}
	return nil
}

// Validate checks the fields required to upload a photo.
func (c CreatePhoto) Validate() error {
	if !c.Stage.IsValid() {
		return fmt.Errorf("invalid stage: %s", c.Stage)
	}
	if c.ContentType == "" {
		return errors.New("content type cannot be empty")
	}
	return nil
}
