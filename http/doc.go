// Package http provides the HTTP server for the kilncat catalog API.
//
// This package implements a RESTful JSON API for pottery items and photos,
// bearer-token authentication for the API surface, and signed-URL-verified
// blob serving.
//
// # Routes
//
//   - GET  /healthz                                 liveness check
//   - GET  /blobs/*                                 blob content (signed query, no bearer)
//   - GET  /api/items                               list items (owner scoped)
//   - POST /api/items                               create item
//   - GET  /api/items/{itemID}                      item with photos and signed URLs
//   - PUT  /api/items/{itemID}                      partial update
//   - DELETE /api/items/{itemID}                    cascade delete
//   - GET  /api/items/{itemID}/photos               list photos
//   - POST /api/items/{itemID}/photos               multipart upload (file, stage, note)
//   - PUT  /api/items/{itemID}/photos/{photoID}     update stage/note
//   - DELETE /api/items/{itemID}/photos/{photoID}   delete photo and blob
//
// # Authentication
//
// API routes use AuthMiddleware: the Authorization bearer token is verified
// by a TokenVerifier, the user's profile is synced, and the resulting
// Principal is stashed in the request context. Profile sync failure does not
// fail the request.
//
// Blob routes skip bearer auth. Each request must instead carry the signed
// query parameters issued with the blob's URL; the signature covers the
// exact request path and expires after the issuing TTL.
//
// # Error responses
//
// Errors are JSON bodies with stable codes. The service error taxonomy maps
// onto status codes: invalid or expired tokens give 401, hidden or missing
// resources 404, conflicts 409, verification or storage outages 503, and
// invalid input 400.
//
// # Usage
//
//	handlerCfg := http.HandlerConfig{MaxUploadBytes: 32 << 20}
//	handler := http.NewHandler(&handlerCfg, service, blobStore, signer, verifier)
//	http.ListenAndServe(":8080", handler.Router())
package http
