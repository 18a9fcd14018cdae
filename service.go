package kilncat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// CatalogService sequences metadata and blob operations for the photo
// lifecycle. It is the only entry point through which items and photos are
// created or destroyed, and it owns the cross-store ordering policy:
//
//   - create: blob first, then metadata. A failed blob write aborts clean;
//     a failed metadata write triggers a compensating blob delete. A
//     dangling blob is wasted storage, reconcilable by a sweep; a dangling
//     metadata record would hand readers broken signed URLs.
//   - delete: metadata first, then blob. Once the record is gone the photo
//     is invisible to every reader, so a failed blob delete leaves only an
//     orphan blob behind.
type CatalogService struct {
	repo           MetadataRepo
	blobs          BlobStorage
	urls           *URLIssuer
	cleanupTimeout time.Duration
}

// ServiceConfig holds configuration options for CatalogService.
type ServiceConfig struct {
	// SignedURLTTL is the validity window for issued photo URLs.
	SignedURLTTL time.Duration
	// CleanupTimeout bounds detached continuation and compensation work
	// (default: 30s).
	CleanupTimeout time.Duration
}

func NewCatalogService(repo MetadataRepo, blobs BlobStorage, cfg ServiceConfig) (*CatalogService, error) {
	urls, err := NewURLIssuer(blobs, cfg.SignedURLTTL)
	if err != nil {
		return nil, fmt.Errorf("new catalog service: %w", err)
	}
	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = 30 * time.Second
	}
	return &CatalogService{
		repo:           repo,
		blobs:          blobs,
		urls:           urls,
		cleanupTimeout: cleanupTimeout,
	}, nil
}

// CreateItem stores a new item owned by the principal. The client-supplied
// creation time is normalized to UTC with its original zone recorded.
func (s *CatalogService) CreateItem(ctx context.Context, p Principal, in CreateItem) (ItemView, error) {
	if err := ctx.Err(); err != nil {
		return ItemView{}, fmt.Errorf("create item: %w", err)
	}
	if err := in.Validate(); err != nil {
		return ItemView{}, fmt.Errorf("create item: %w: %v", ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	zone, offset := createdAt.Zone()

	stage := in.CurrentStage
	if stage == "" {
		stage = StageGreenware
	}

	item := Item{
		ID:           uuid.New().String(),
		OwnerID:      p.SubjectID,
		Title:        in.Title,
		ClayType:     in.ClayType,
		Glaze:        in.Glaze,
		Location:     in.Location,
		Notes:        in.Notes,
		CurrentStage: stage,
		Measurements: in.Measurements,
		CreatedAt:    createdAt.UTC(),
		CreatedTZ:    TimezoneIdentifier(zone, offset),
		UpdatedAt:    now,
	}

	if err := s.repo.PutItem(ctx, item); err != nil {
		return ItemView{}, fmt.Errorf("create item: %w", storageErr(err))
	}

	return ItemView{Item: item, Photos: []PhotoView{}}, nil
}

// GetItem retrieves one item with freshly signed photo URLs. Items outside
// the principal's ownership are reported as not found.
func (s *CatalogService) GetItem(ctx context.Context, p Principal, itemID string) (ItemView, error) {
	item, err := s.loadGuardedItem(ctx, p, itemID)
	if err != nil {
		return ItemView{}, fmt.Errorf("get item: %w", err)
	}
	view, err := s.itemView(ctx, item)
	if err != nil {
		return ItemView{}, fmt.Errorf("get item: %w", err)
	}
	return view, nil
}

// ListItems retrieves the principal's items, or every item for admins.
func (s *CatalogService) ListItems(ctx context.Context, p Principal) ([]ItemView, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	ownerID := p.SubjectID
	if p.IsAdmin {
		ownerID = ""
	}

	items, err := s.repo.ListItems(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", storageErr(err))
	}

	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		view, err := s.itemView(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		views = append(views, view)
	}
	return views, nil
}

// UpdateItem applies the set fields of in to an existing item.
func (s *CatalogService) UpdateItem(ctx context.Context, p Principal, itemID string, in UpdateItem) (ItemView, error) {
	item, err := s.loadGuardedItem(ctx, p, itemID)
	if err != nil {
		return ItemView{}, fmt.Errorf("update item: %w", err)
	}

	if in.Title != nil {
		if *in.Title == "" {
			return ItemView{}, fmt.Errorf("update item: %w: title cannot be empty", ErrInvalidInput)
		}
		item.Title = *in.Title
	}
	if in.ClayType != nil {
		if *in.ClayType == "" {
			return ItemView{}, fmt.Errorf("update item: %w: clay type cannot be empty", ErrInvalidInput)
		}
		item.ClayType = *in.ClayType
	}
	if in.Glaze != nil {
		item.Glaze = *in.Glaze
	}
	if in.Location != nil {
		if *in.Location == "" {
			return ItemView{}, fmt.Errorf("update item: %w: location cannot be empty", ErrInvalidInput)
		}
		item.Location = *in.Location
	}
	if in.Notes != nil {
		item.Notes = *in.Notes
	}
	if in.CurrentStage != nil {
		if !in.CurrentStage.IsValid() {
			return ItemView{}, fmt.Errorf("update item: %w: invalid stage: %s", ErrInvalidInput, *in.CurrentStage)
		}
		item.CurrentStage = *in.CurrentStage
	}
	if in.Measurements != nil {
		item.Measurements = in.Measurements
	}
	item.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return ItemView{}, fmt.Errorf("update item: %w", storageErr(err))
	}

	view, err := s.itemView(ctx, item)
	if err != nil {
		return ItemView{}, fmt.Errorf("update item: %w", err)
	}
	return view, nil
}

// CreatePhoto uploads a photo for an item the principal owns.
//
// The blob is written before the metadata record. Once the blob write
// starts, the sequence runs to completion on a detached context: a caller
// disconnect cannot strand a blob without either a metadata record or a
// compensating delete. A metadata failure after a successful blob write is
// never reported as success; the blob is deleted best-effort, and if even
// that fails the orphan ref is logged for the reconciliation sweep.
func (s *CatalogService) CreatePhoto(ctx context.Context, p Principal, itemID string, in CreatePhoto, content io.Reader) (PhotoView, error) {
	if err := ctx.Err(); err != nil {
		return PhotoView{}, fmt.Errorf("create photo: %w", err)
	}
	if err := in.Validate(); err != nil {
		return PhotoView{}, fmt.Errorf("create photo: %w: %v", ErrInvalidInput, err)
	}

	item, err := s.loadGuardedItem(ctx, p, itemID)
	if err != nil {
		return PhotoView{}, fmt.Errorf("create photo: %w", err)
	}

	photoID := uuid.New().String()
	key := PhotoBlobKey(item.ID, photoID, in.FileName)

	put, err := s.blobs.Put(ctx, key, in.ContentType, content)
	if err != nil {
		// Nothing written yet that anyone can see: fail clean.
		return PhotoView{}, fmt.Errorf("create photo %s: blob write failed: %w", photoID, storageErr(err))
	}

	photo := Photo{
		ID:          photoID,
		ItemID:      item.ID,
		OwnerID:     item.OwnerID,
		Stage:       in.Stage,
		Note:        in.Note,
		FileName:    in.FileName,
		BlobRef:     put.Ref,
		ContentType: in.ContentType,
		SizeBytes:   put.SizeBytes,
		UploadedAt:  time.Now().UTC(),
	}

	// The blob exists now. The metadata write must not be abandoned just
	// because the caller went away.
	metaCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cleanupTimeout)
	defer cancel()

	if putErr := s.repo.PutPhoto(metaCtx, photo); putErr != nil {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
		defer cleanupCancel()

		if delErr := s.blobs.Delete(cleanupCtx, put.Ref); delErr != nil {
			slog.Warn("orphan blob pending reconciliation",
				"blob_ref", put.Ref, "item_id", item.ID, "photo_id", photoID, "err", delErr)
		}
		return PhotoView{}, fmt.Errorf("create photo %s: metadata write failed (%v): %w", photoID, putErr, ErrUnavailable)
	}

	return s.photoView(photo), nil
}

// UpdatePhoto applies the set fields of in to a photo's metadata. Blob
// content is immutable once uploaded.
func (s *CatalogService) UpdatePhoto(ctx context.Context, p Principal, itemID, photoID string, in UpdatePhoto) (PhotoView, error) {
	photo, err := s.loadGuardedPhoto(ctx, p, itemID, photoID)
	if err != nil {
		return PhotoView{}, fmt.Errorf("update photo: %w", err)
	}

	if in.Stage != nil {
		if !in.Stage.IsValid() {
			return PhotoView{}, fmt.Errorf("update photo: %w: invalid stage: %s", ErrInvalidInput, *in.Stage)
		}
		photo.Stage = *in.Stage
	}
	if in.Note != nil {
		photo.Note = *in.Note
	}

	if err := s.repo.UpdatePhoto(ctx, photo); err != nil {
		return PhotoView{}, fmt.Errorf("update photo: %w", storageErr(err))
	}

	return s.photoView(photo), nil
}

// SetPrimaryPhoto marks one photo as the item's cover, clearing the flag on
// its siblings so at most one photo per item carries it.
func (s *CatalogService) SetPrimaryPhoto(ctx context.Context, p Principal, itemID, photoID string) (PhotoView, error) {
	photo, err := s.loadGuardedPhoto(ctx, p, itemID, photoID)
	if err != nil {
		return PhotoView{}, fmt.Errorf("set primary photo: %w", err)
	}

	if err := s.repo.SetPrimaryPhoto(ctx, itemID, photo.ID); err != nil {
		return PhotoView{}, fmt.Errorf("set primary photo: %w", storageErr(err))
	}

	photo.IsPrimary = true
	return s.photoView(photo), nil
}

// DeletePhoto removes a photo: metadata record first, blob second. A failed
// blob delete still reports success; the orphan ref is logged for the
// reconciliation sweep. The record deletion is the externally visible
// contract.
func (s *CatalogService) DeletePhoto(ctx context.Context, p Principal, itemID, photoID string) error {
	photo, err := s.loadGuardedPhoto(ctx, p, itemID, photoID)
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}

	if err := s.repo.DeletePhoto(ctx, photo.ID); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("delete photo %s: %w", photo.ID, storageErr(err))
		}
		// Lost a race with a concurrent delete; the record is gone either way.
	}

	s.deleteBlobLogged(photo.BlobRef, photo.ItemID, photo.ID)
	return nil
}

// DeleteItem cascade-deletes an item: every photo record, then every blob,
// then the item record. Individual blob-delete failures do not stop the
// cascade; their refs come back in the result as an advisory. The item
// record is deleted only after all photo records are gone, and a failure
// there is fatal so the caller retries to completion. Deleting an item that
// no longer exists is idempotent success.
func (s *CatalogService) DeleteItem(ctx context.Context, p Principal, itemID string) (DeleteItemResult, error) {
	if err := ctx.Err(); err != nil {
		return DeleteItemResult{}, fmt.Errorf("delete item: %w", err)
	}

	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return DeleteItemResult{}, nil
		}
		return DeleteItemResult{}, fmt.Errorf("delete item: %w", storageErr(err))
	}
	if err := AuthorizeHidden(p, item.OwnerID); err != nil {
		return DeleteItemResult{}, fmt.Errorf("delete item: %w", err)
	}

	photos, err := s.repo.ListPhotos(ctx, itemID)
	if err != nil {
		return DeleteItemResult{}, fmt.Errorf("delete item %s: list photos: %w", itemID, storageErr(err))
	}

	var result DeleteItemResult
	for _, photo := range photos {
		if err := s.repo.DeletePhoto(ctx, photo.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				// Concurrent cascade got there first.
				continue
			}
			return result, fmt.Errorf("delete item %s: photo record %s: %w", itemID, photo.ID, storageErr(err))
		}
		if !s.deleteBlobLogged(photo.BlobRef, itemID, photo.ID) {
			result.OrphanBlobs = append(result.OrphanBlobs, photo.BlobRef)
		}
	}

	if err := s.repo.DeleteItem(ctx, itemID); err != nil && !errors.Is(err, ErrNotFound) {
		// Photo records are already gone; the item must still be deleted to
		// completion. Surface as retryable, never swallow.
		return result, fmt.Errorf("delete item %s: item record: %w", itemID, storageErr(err))
	}

	return result, nil
}

// ListPhotos retrieves an item's photos with freshly signed URLs.
func (s *CatalogService) ListPhotos(ctx context.Context, p Principal, itemID string) ([]PhotoView, error) {
	item, err := s.loadGuardedItem(ctx, p, itemID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}

	photos, err := s.repo.ListPhotos(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", storageErr(err))
	}

	views := make([]PhotoView, 0, len(photos))
	for _, photo := range photos {
		views = append(views, s.photoView(photo))
	}
	return views, nil
}

// SyncProfile refreshes the principal's profile record and returns the
// stored profile, including the persisted admin flag.
func (s *CatalogService) SyncProfile(ctx context.Context, p Principal, displayName string) (Profile, error) {
	profile, err := s.repo.UpsertProfile(ctx, Profile{
		UID:         p.SubjectID,
		Email:       p.Email,
		DisplayName: displayName,
		LastLoginAt: time.Now().UTC(),
	})
	if err != nil {
		return Profile{}, fmt.Errorf("sync profile %s: %w", p.SubjectID, storageErr(err))
	}
	return profile, nil
}

// loadGuardedItem fetches an item and applies the existence-hiding guard.
func (s *CatalogService) loadGuardedItem(ctx context.Context, p Principal, itemID string) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	if itemID == "" {
		return Item{}, fmt.Errorf("%w: item id cannot be empty", ErrInvalidInput)
	}

	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Item{}, err
		}
		return Item{}, storageErr(err)
	}
	if err := AuthorizeHidden(p, item.OwnerID); err != nil {
		return Item{}, err
	}
	return item, nil
}

// loadGuardedPhoto fetches a photo, checks it belongs to itemID, and
// applies the existence-hiding guard against the photo's owner.
func (s *CatalogService) loadGuardedPhoto(ctx context.Context, p Principal, itemID, photoID string) (Photo, error) {
	if err := ctx.Err(); err != nil {
		return Photo{}, err
	}
	if photoID == "" {
		return Photo{}, fmt.Errorf("%w: photo id cannot be empty", ErrInvalidInput)
	}

	photo, err := s.repo.GetPhoto(ctx, photoID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Photo{}, err
		}
		return Photo{}, storageErr(err)
	}
	if photo.ItemID != itemID {
		return Photo{}, fmt.Errorf("photo %s not in item %s: %w", photoID, itemID, ErrNotFound)
	}
	if err := AuthorizeHidden(p, photo.OwnerID); err != nil {
		return Photo{}, err
	}
	return photo, nil
}

// deleteBlobLogged deletes a blob on a detached context and reports whether
// it succeeded. Failures are logged as orphans for reconciliation.
func (s *CatalogService) deleteBlobLogged(ref, itemID, photoID string) bool {
	cleanupCtx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
	defer cancel()

	if err := s.blobs.Delete(cleanupCtx, ref); err != nil {
		slog.Warn("orphan blob pending reconciliation",
			"blob_ref", ref, "item_id", itemID, "photo_id", photoID, "err", err)
		return false
	}
	return true
}

func (s *CatalogService) itemView(ctx context.Context, item Item) (ItemView, error) {
	photos, err := s.repo.ListPhotos(ctx, item.ID)
	if err != nil {
		return ItemView{}, storageErr(err)
	}
	views := make([]PhotoView, 0, len(photos))
	for _, photo := range photos {
		views = append(views, s.photoView(photo))
	}
	return ItemView{Item: item, Photos: views}, nil
}

// photoView renders a photo for clients: the blob ref is replaced by a
// freshly issued signed URL. URL issuance failure degrades to an empty URL
// rather than failing the whole read.
func (s *CatalogService) photoView(photo Photo) PhotoView {
	url, err := s.urls.Issue(photo.BlobRef)
	if err != nil {
		slog.Warn("signed url issuance failed", "photo_id", photo.ID, "err", err)
		url = ""
	}
	return PhotoView{Photo: photo, SignedURL: url}
}

// storageErr classifies a repo or blob failure for callers: timeouts and
// cancellations surface as retryable ErrUnavailable, taxonomy errors pass
// through, anything else stays wrapped as-is.
func storageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%v: %w", err, ErrUnavailable)
	default:
		return err
	}
}
