// Package kilncat provides a pottery catalog backend with per-user item
// ownership, staged photo management, and pluggable metadata and blob
// storage backends.
//
// Kilncat tracks pottery pieces through their firing stages (greenware,
// bisque, final) with per-stage measurements and photos. Photo blobs and
// their metadata records live in separate stores, and the service layer
// owns the cross-store ordering that keeps them consistent.
//
// # Key Components
//
//   - CatalogService: Main service sequencing metadata and blob operations
//   - MetadataRepo: Interface for metadata persistence (PostgreSQL, SQLite)
//   - BlobStorage: Interface for photo blobs (filesystem, extensible to S3/GCS)
//   - URLIssuer: Signed URL issuance with a fixed TTL policy
//   - auth.Verifier: Bearer token verification against cached signing keys
//
// # Ordering Policy
//
// Photo creation writes the blob first and the metadata record second; a
// metadata failure triggers a compensating blob delete. Photo deletion
// removes the metadata record first and the blob second; a blob failure
// leaves only an unreachable orphan, logged for reconciliation. Item
// deletion cascades over photos with the same ordering and is idempotent.
//
// # Example Usage
//
//	service, err := kilncat.NewCatalogService(repo, blobs, kilncat.ServiceConfig{
//	    SignedURLTTL: 15 * time.Minute,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create an item
//	item, err := service.CreateItem(ctx, principal, kilncat.CreateItem{
//	    Title:    "tall vase",
//	    ClayType: "stoneware",
//	    Location: "shelf 3",
//	})
//
//	// Upload a photo
//	photo, err := service.CreatePhoto(ctx, principal, item.ID, kilncat.CreatePhoto{
//	    Stage:       kilncat.StageBisque,
//	    FileName:    "front.jpg",
//	    ContentType: "image/jpeg",
//	}, file)
//
// See the http package for the REST API and the database/sqlite and
// database/postgres packages for metadata backend implementations.
package kilncat
