package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/clayloft/kilncat"
)

// Service is the catalog surface the handlers drive.
type Service interface {
	CreateItem(ctx context.Context, p kilncat.Principal, in kilncat.CreateItem) (kilncat.ItemView, error)
	GetItem(ctx context.Context, p kilncat.Principal, itemID string) (kilncat.ItemView, error)
	ListItems(ctx context.Context, p kilncat.Principal) ([]kilncat.ItemView, error)
	UpdateItem(ctx context.Context, p kilncat.Principal, itemID string, in kilncat.UpdateItem) (kilncat.ItemView, error)
	DeleteItem(ctx context.Context, p kilncat.Principal, itemID string) (kilncat.DeleteItemResult, error)
	CreatePhoto(ctx context.Context, p kilncat.Principal, itemID string, in kilncat.CreatePhoto, content io.Reader) (kilncat.PhotoView, error)
	UpdatePhoto(ctx context.Context, p kilncat.Principal, itemID, photoID string, in kilncat.UpdatePhoto) (kilncat.PhotoView, error)
	SetPrimaryPhoto(ctx context.Context, p kilncat.Principal, itemID, photoID string) (kilncat.PhotoView, error)
	DeletePhoto(ctx context.Context, p kilncat.Principal, itemID, photoID string) error
	ListPhotos(ctx context.Context, p kilncat.Principal, itemID string) ([]kilncat.PhotoView, error)
	SyncProfile(ctx context.Context, p kilncat.Principal, displayName string) (kilncat.Profile, error)
}

// BlobReader serves raw blob content for signed URL requests.
type BlobReader interface {
	Get(ctx context.Context, ref string) (io.ReadSeekCloser, error)
}

type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

type HandlerConfig struct {
	// MaxUploadBytes caps multipart photo uploads. Zero means the default.
	MaxUploadBytes int64
	// RequestTimeout bounds each API request. Zero disables the bound.
	RequestTimeout time.Duration
	CORS           CORSConfig
}

const defaultMaxUploadBytes = 32 << 20

// Handler provides HTTP handlers for the catalog API and signed blob serving.
type Handler struct {
	config   HandlerConfig
	service  Service
	blobs    BlobReader
	signer   *kilncat.URLSigner
	verifier TokenVerifier
}

// NewHandler creates a new Handler with the given configuration.
func NewHandler(config *HandlerConfig, service Service, blobs BlobReader, signer *kilncat.URLSigner, verifier TokenVerifier) *Handler {
	cfg := *config
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		config:   cfg,
		service:  service,
		blobs:    blobs,
		signer:   signer,
		verifier: verifier,
	}
}

// Router returns an http.Handler with all routes configured. API routes
// require a bearer token; blob serving is authorized by the signed query
// instead.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Get("/healthz", h.handleHealth)
	r.Get(kilncat.BlobPathPrefix+"*", h.handleBlob)

	r.Route("/api", func(r chi.Router) {
		if h.config.RequestTimeout > 0 {
			r.Use(middleware.Timeout(h.config.RequestTimeout))
		}
		r.Use(AuthMiddleware(h.verifier, h.service))
		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.handleListItems)
			r.Post("/", h.handleCreateItem)
			r.Route("/{itemID}", func(r chi.Router) {
				r.Get("/", h.handleGetItem)
				r.Put("/", h.handleUpdateItem)
				r.Delete("/", h.handleDeleteItem)
				r.Get("/photos", h.handleListPhotos)
				r.Post("/photos", h.handleCreatePhoto)
				r.Put("/photos/{photoID}", h.handleUpdatePhoto)
				r.Patch("/photos/{photoID}/primary", h.handleSetPrimaryPhoto)
				r.Delete("/photos/{photoID}", h.handleDeletePhoto)
			})
		})
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleBlob serves blob content authorized by a signed query. The signature
// covers the exact request path, so verification precedes any storage access.
func (h *Handler) handleBlob(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if err := h.signer.Verify(path, r.URL.Query()); err != nil {
		HandleError(w, err)
		return
	}

	ref := strings.TrimPrefix(path, kilncat.BlobPathPrefix)
	content, err := h.blobs.Get(r.Context(), ref)
	if err != nil {
		HandleError(w, err)
		return
	}
	defer func() { _ = content.Close() }()

	http.ServeContent(w, r, ref, time.Time{}, content)
}

type itemRequest struct {
	Title        string                `json:"title"`
	ClayType     string                `json:"clay_type"`
	Glaze        string                `json:"glaze"`
	Location     string                `json:"location"`
	Notes        string                `json:"notes"`
	CurrentStage string                `json:"current_stage"`
	Measurements *kilncat.Measurements `json:"measurements"`
	// CreatedAt may carry the client's local offset; it is preserved through
	// JSON decoding and normalized by the service.
	CreatedAt *time.Time `json:"created_at"`
}

type updateItemRequest struct {
	Title        *string               `json:"title"`
	ClayType     *string               `json:"clay_type"`
	Glaze        *string               `json:"glaze"`
	Location     *string               `json:"location"`
	Notes        *string               `json:"notes"`
	CurrentStage *string               `json:"current_stage"`
	Measurements *kilncat.Measurements `json:"measurements"`
}

type updatePhotoRequest struct {
	Stage *string `json:"stage"`
	Note  *string `json:"note"`
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing principal")
		return
	}

	items, err := h.service.ListItems(r.Context(), p)
	if err != nil {
		HandleError(w, err)
		return
	}

	if items == nil {
		items = []kilncat.ItemView{}
	}
	_ = WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing principal")
		return
	}

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_input", "Invalid JSON body")
		return
	}

	in := kilncat.CreateItem{
		Title:        req.Title,
		ClayType:     req.ClayType,
		Glaze:        req.Glaze,
		Location:     req.Location,
		Notes:        req.Notes,
		CurrentStage: kilncat.Stage(req.CurrentStage),
		Measurements: req.Measurements,
	}
	if req.CreatedAt != nil {
		in.CreatedAt = *req.CreatedAt
	}

	item, err := h.service.CreateItem(r.Context(), p, in)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, item)
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing principal")
		return
	}

	item, err := h.service.GetItem(r.Context(), p, chi.URLParam(r, "itemID"))
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing principal")
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_input", "Invalid JSON body")
		return
	}

	in := kilncat.UpdateItem{
		Title:        req.Title,
		ClayType:     req.ClayType,
		Glaze:        req.Glaze,
		Location:     req.Location,
		Notes:        req.Notes,
		Measurements: req.Measurements,
	}
	if req.CurrentStage != nil {
		stage := kilncat.Stage(*req.CurrentStage)
		in.CurrentStage = &stage
	}

	item, err := h.service.UpdateItem(r.Context(), p, chi.URLParam(r, "itemID"), in)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing principal")
		return
	}

	result, err := h.service.DeleteItem(r.Context(), p, chi.URLParam(r, "itemID"))
	if err != nil {
		HandleError(w, err)
		return
	}

	if len(result.OrphanBlobs) > 0 {
		_ = WriteJSON(w, http.StatusOK, result)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListPhotos(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing principal")
		return
	}

	photos, err := h.service.ListPhotos(r.Context(), p, chi.URLParam(r, "itemID"))
	if err != nil {
		HandleError(w, err)
		return
	}

	if photos == nil {
		photos = []kilncat.PhotoView{}
	}
	_ = WriteJSON(w, http.StatusOK, photos)
}

func (h *Handler) handleCreatePhoto(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing principal")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.config.MaxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_input", "Invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_input", "Missing file part")
		return
	}
	defer func() { _ = file.Close() }()

	in := kilncat.CreatePhoto{
		Stage:       kilncat.Stage(r.FormValue("stage")),
		Note:        r.FormValue("note"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}

	photo, err := h.service.CreatePhoto(r.Context(), p, chi.URLParam(r, "itemID"), in, file)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, photo)
}

func (h *Handler) handleUpdatePhoto(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing principal")
		return
	}

	var req updatePhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_input", "Invalid JSON body")
		return
	}

	in := kilncat.UpdatePhoto{Note: req.Note}
	if req.Stage != nil {
		stage := kilncat.Stage(*req.Stage)
		in.Stage = &stage
	}

	photo, err := h.service.UpdatePhoto(r.Context(), p, chi.URLParam(r, "itemID"), chi.URLParam(r, "photoID"), in)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, photo)
}

func (h *Handler) handleSetPrimaryPhoto(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing principal")
		return
	}

	photo, err := h.service.SetPrimaryPhoto(r.Context(), p, chi.URLParam(r, "itemID"), chi.URLParam(r, "photoID"))
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, photo)
}

func (h *Handler) handleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing principal")
		return
	}

	err := h.service.DeletePhoto(r.Context(), p, chi.URLParam(r, "itemID"), chi.URLParam(r, "photoID"))
	if err != nil {
		HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
