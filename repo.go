package kilncat

import (
	"context"
	"io"
	"time"
)

// MetadataRepo is the interface for item, photo, and profile metadata
// persistence. Implementations must be safe for concurrent use.
//
// All methods accept a context for cancellation and timeout control.
// Lookups for rows that do not exist return ErrNotFound; callers that need
// idempotent deletes translate that themselves.
type MetadataRepo interface {
	// GetItem retrieves a single item by ID.
	GetItem(ctx context.Context, id string) (Item, error)

	// PutItem inserts a new item. The ID must be set by the caller and
	// collide with nothing; an existing ID returns ErrConflict.
	PutItem(ctx context.Context, item Item) error

	// UpdateItem persists the mutable fields of an existing item and bumps
	// updated_at. Returns ErrNotFound if the item does not exist.
	UpdateItem(ctx context.Context, item Item) error

	// DeleteItem removes an item record. Returns ErrNotFound if the item
	// does not exist. Child photo records are NOT touched; callers are
	// responsible for cascade ordering.
	DeleteItem(ctx context.Context, id string) error

	// ListItems retrieves all items owned by ownerID. An empty ownerID
	// returns every item (admin listing).
	ListItems(ctx context.Context, ownerID string) ([]Item, error)

	// GetPhoto retrieves a single photo record by ID.
	GetPhoto(ctx context.Context, id string) (Photo, error)

	// PutPhoto inserts a new photo record.
	PutPhoto(ctx context.Context, photo Photo) error

	// UpdatePhoto persists the mutable metadata fields of a photo record.
	UpdatePhoto(ctx context.Context, photo Photo) error

	// SetPrimaryPhoto atomically clears the primary flag on the item's
	// other photos and sets it on photoID, so at most one photo per item
	// carries it. Returns ErrNotFound if photoID is not a record of itemID.
	SetPrimaryPhoto(ctx context.Context, itemID, photoID string) error

	// DeletePhoto removes a photo record. Returns ErrNotFound if the record
	// does not exist.
	DeletePhoto(ctx context.Context, id string) error

	// ListPhotos retrieves all photo records for one item, oldest first.
	ListPhotos(ctx context.Context, itemID string) ([]Photo, error)

	// UpsertProfile creates or refreshes a user profile record, preserving
	// the stored admin flag on update. Returns the stored profile.
	UpsertProfile(ctx context.Context, profile Profile) (Profile, error)

	// GetProfile retrieves a profile by UID.
	GetProfile(ctx context.Context, uid string) (Profile, error)

	// SetAdmin sets the admin flag on an existing profile.
	SetAdmin(ctx context.Context, uid string, isAdmin bool) error
}

// PutResult describes a stored blob.
type PutResult struct {
	// Ref is the opaque handle the blob is addressed by. Stored only inside
	// photo records, never exposed to clients directly.
	Ref       string
	SizeBytes int64
	ETag      string
}

// BlobStorage is the interface for photo blob persistence. Implementations
// can use local filesystem, S3, GCS, or any other object store.
//
// Implementations should respect context cancellation during long-running
// writes and clean up partial data.
type BlobStorage interface {
	// Put stores the content under key and returns the resulting ref.
	// A failed Put must leave no retrievable blob behind.
	Put(ctx context.Context, key, contentType string, content io.Reader) (PutResult, error)

	// Get opens a blob for reading. Returns ErrNotFound if it does not exist.
	// The caller is responsible for closing the returned reader.
	Get(ctx context.Context, ref string) (io.ReadSeekCloser, error)

	// Delete removes a blob. Deleting a blob that does not exist is a no-op
	// success so that delete paths stay idempotent.
	Delete(ctx context.Context, ref string) error

	// SignedURL returns a time-limited capability URL granting read access
	// to one blob without further authentication.
	SignedURL(ref string, ttl time.Duration) (string, error)
}
