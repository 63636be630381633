package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docutag/leadimage"
	"github.com/docutag/leadimage/db"
	"github.com/docutag/leadimage/imagekey"
	"github.com/docutag/leadimage/models"
	"github.com/docutag/leadimage/storage"
)

// maxUploadBytes bounds the size of an uploaded image file.
const maxUploadBytes = 32 << 20

// maxThumbSize bounds the thumbnail box size a client may request.
const maxThumbSize = 1024

// Store is the database surface the server needs
type Store interface {
	SaveDocument(doc *models.Document, fileLinks []string) error
	GetDocument(id int64) (*models.Document, error)
	SaveImage(image *models.Image) error
	GetImageByKey(fileKey string) (*models.Image, error)
	SetDocumentImage(documentID int64, property, fileKey string, score int) error
	DeleteDocumentImage(documentID int64, property string) error
	GetDocumentImage(documentID int64, property string) (*models.DocumentImage, error)
	GetDocumentImages(documentIDs []int64, property string) (map[int64]*models.DocumentImage, error)
	GetStats() (*db.Stats, error)
	Close() error
}

// Server represents the API server
type Server struct {
	store       Store
	selector    *leadimage.Selector
	backend     storage.Backend
	addr        string
	server      *http.Server
	mux         *http.ServeMux
	corsEnabled bool
}

// Config contains server configuration
type Config struct {
	Addr        string
	CORSEnabled bool
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:        ":8080",
		CORSEnabled: true,
	}
}

// NewServer creates a new API server around its collaborators
func NewServer(config Config, store Store, selector *leadimage.Selector, backend storage.Backend) *Server {
	s := &Server{
		store:       store,
		selector:    selector,
		backend:     backend,
		addr:        config.Addr,
		mux:         http.NewServeMux(),
		corsEnabled: config.CORSEnabled,
	}

	// Register routes
	s.registerRoutes()

	// Create HTTP server
	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.middleware(s.mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// registerRoutes sets up all API routes
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/api/renders", s.handleRender)
	s.mux.HandleFunc("/api/documents/images", s.handleDocumentImages)
	s.mux.HandleFunc("/api/documents/", s.handleDocument) // Handles /api/documents/{id} and /api/documents/{id}/image
	s.mux.HandleFunc("/api/images/", s.handleImage)       // Handles /api/images/{name}, /{name}/file and /{name}/thumb
	s.mux.HandleFunc("/api/blacklist", s.handleBlacklist)
}

// Start starts the API server
func (s *Server) Start() error {
	log.Printf("Starting API server on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down API server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.store.Close()
}

// Handler returns the server's HTTP handler, wrapped in middleware
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// middleware applies common middleware to all routes
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CORS headers
		if s.corsEnabled {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
		}

		// Logging (skip health checks to reduce noise)
		start := time.Now()
		if r.URL.Path != "/health" {
			log.Printf("%s %s", r.Method, r.URL.Path)
		}

		next.ServeHTTP(w, r)

		if r.URL.Path != "/health" {
			log.Printf("%s %s - completed in %v", r.Method, r.URL.Path, time.Since(start))
		}
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats, err := s.store.GetStats()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"documents": stats.Documents,
		"images":    stats.Images,
		"time":      time.Now(),
	})
}

// RenderRequest carries the image placements observed while rendering
// one document. Rendered HTML may be supplied instead of explicit
// usages, in which case placements are extracted from it.
type RenderRequest struct {
	DocumentID int64                 `json:"document_id"`
	Namespace  int                   `json:"namespace"`
	Usages     []leadimage.Placement `json:"usages,omitempty"`
	HTML       string                `json:"html,omitempty"`
}

// RenderResponse reports the selection outcome for one render
type RenderResponse struct {
	DocumentID int64  `json:"document_id"`
	Eligible   bool   `json:"eligible"`
	Candidates int    `json:"candidates"`
	Chosen     bool   `json:"chosen"`
	FileKey    string `json:"file_key,omitempty"`
	Score      int    `json:"score,omitempty"`
	Property   string `json:"property"`
}

// handleRender finalizes one document render: it scores the reported
// placements, stores the winning image under the configured property,
// and clears any previous choice when no candidate wins.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.DocumentID <= 0 {
		respondError(w, http.StatusBadRequest, "document_id is required")
		return
	}

	placements := req.Usages
	if len(placements) == 0 && req.HTML != "" {
		extracted, err := leadimage.ExtractPlacements(strings.NewReader(req.HTML))
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid html")
			return
		}
		placements = extracted
	}

	state := s.selector.NewRender(req.DocumentID, req.Namespace)
	for _, p := range placements {
		s.selector.Record(state, p)
	}

	fileKey, score, chosen, err := s.selector.Finalize(r.Context(), state)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("selection failed: %v", err))
		return
	}

	property := s.selector.Config().Property
	if chosen {
		if err := s.store.SetDocumentImage(req.DocumentID, property, fileKey, score); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to store selection")
			return
		}
	} else {
		if err := s.store.DeleteDocumentImage(req.DocumentID, property); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to clear selection")
			return
		}
	}

	respondJSON(w, http.StatusOK, RenderResponse{
		DocumentID: req.DocumentID,
		Eligible:   state.Eligible(),
		Candidates: len(state.Usages()),
		Chosen:     chosen,
		FileKey:    fileKey,
		Score:      score,
		Property:   property,
	})
}

// ImageLink points at a served rendition of an image
type ImageLink struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// DocumentImageResult is the queried image data for one document
type DocumentImageResult struct {
	DocumentID int64      `json:"document_id"`
	FileKey    string     `json:"file_key,omitempty"`
	Thumbnail  *ImageLink `json:"thumbnail,omitempty"`
	Original   *ImageLink `json:"original,omitempty"`
}

// DocumentImagesResponse is one page of query results. Continue names
// the last delivered document; passing it back resumes after it.
type DocumentImagesResponse struct {
	Results  []DocumentImageResult `json:"results"`
	Continue int64                 `json:"continue,omitempty"`
}

// handleDocumentImages returns the chosen image for a batch of
// documents, with selectable props, thumbnail sizing and paging.
func (s *Server) handleDocumentImages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ids, ok := s.parseDocumentIDs(w, r)
	if !ok {
		return
	}

	props, ok := s.parseProps(w, r)
	if !ok {
		return
	}

	thumbSize := s.selector.Config().DefaultThumbSize
	if sizeStr := r.URL.Query().Get("thumbsize"); sizeStr != "" {
		fmt.Sscanf(sizeStr, "%d", &thumbSize)
	}
	if thumbSize < 1 {
		thumbSize = s.selector.Config().DefaultThumbSize
	}
	if thumbSize > maxThumbSize {
		thumbSize = maxThumbSize
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		fmt.Sscanf(limitStr, "%d", &limit)
	}
	if limit < 1 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	// The continue cursor names the last document of the previous page
	// and must be one of the requested ids.
	start := 0
	if contStr := r.URL.Query().Get("continue"); contStr != "" {
		contID, err := strconv.ParseInt(contStr, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid continue parameter")
			return
		}

		found := -1
		for i, id := range ids {
			if id == contID {
				found = i
				break
			}
		}
		if found < 0 {
			respondError(w, http.StatusBadRequest, "invalid continue parameter: document not in request")
			return
		}
		start = found + 1
	}

	end := start + limit
	if end > len(ids) {
		end = len(ids)
	}
	page := ids[start:end]

	property := s.selector.Config().Property
	choices, err := s.store.GetDocumentImages(page, property)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	results := make([]DocumentImageResult, 0, len(page))
	for _, id := range page {
		result := DocumentImageResult{DocumentID: id}

		if choice, ok := choices[id]; ok {
			if props["name"] {
				result.FileKey = choice.FileKey
			}

			if props["thumbnail"] || props["original"] {
				img, err := s.store.GetImageByKey(choice.FileKey)
				if err != nil {
					respondError(w, http.StatusInternalServerError, "database error")
					return
				}

				if img != nil {
					escaped := url.PathEscape(choice.FileKey)
					if props["original"] {
						result.Original = &ImageLink{
							URL:    fmt.Sprintf("/api/images/%s/file", escaped),
							Width:  img.Width,
							Height: img.Height,
						}
					}
					if props["thumbnail"] && img.Width > 0 && img.Height > 0 {
						tw, th := storage.FitBox(img.Width, img.Height, thumbSize)
						result.Thumbnail = &ImageLink{
							URL:    fmt.Sprintf("/api/images/%s/thumb?size=%d", escaped, thumbSize),
							Width:  tw,
							Height: th,
						}
					}
				}
			}
		}

		results = append(results, result)
	}

	response := DocumentImagesResponse{Results: results}
	if end < len(ids) && len(page) > 0 {
		response.Continue = page[len(page)-1]
	}

	respondJSON(w, http.StatusOK, response)
}

// parseDocumentIDs reads and validates the ids query parameter,
// deduplicating while preserving request order.
func (s *Server) parseDocumentIDs(w http.ResponseWriter, r *http.Request) ([]int64, bool) {
	idsParam := r.URL.Query().Get("ids")
	if idsParam == "" {
		respondError(w, http.StatusBadRequest, "ids parameter is required")
		return nil, false
	}

	var ids []int64
	seen := make(map[int64]bool)
	for _, part := range strings.Split(idsParam, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid document id: %s", part))
			return nil, false
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if len(ids) == 0 {
		respondError(w, http.StatusBadRequest, "ids parameter is required")
		return nil, false
	}
	return ids, true
}

// parseProps reads the props query parameter. Unknown props are a
// client error, not silently ignored.
func (s *Server) parseProps(w http.ResponseWriter, r *http.Request) (map[string]bool, bool) {
	propsParam := r.URL.Query().Get("props")
	if propsParam == "" {
		propsParam = "thumbnail|name"
	}

	props := make(map[string]bool)
	for _, p := range strings.Split(propsParam, "|") {
		switch p {
		case "thumbnail", "original", "name":
			props[p] = true
		default:
			respondError(w, http.StatusBadRequest, fmt.Sprintf("unrecognized prop: %s", p))
			return nil, false
		}
	}
	return props, true
}

// DocumentRequest registers a document and its file-namespace links
type DocumentRequest struct {
	Namespace int      `json:"namespace"`
	Title     string   `json:"title"`
	FileLinks []string `json:"file_links,omitempty"`
}

// DocumentImageDetail bundles a stored choice with the image metadata
type DocumentImageDetail struct {
	models.DocumentImage
	Image *models.Image `json:"image,omitempty"`
}

// handleDocument handles document registration and choice lookups
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	// Extract path from URL
	path := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	if path == "" {
		respondError(w, http.StatusBadRequest, "document id is required")
		return
	}

	// Check if this is a stored-choice request
	if strings.HasSuffix(path, "/image") {
		idStr := strings.TrimSuffix(path, "/image")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid document id")
			return
		}
		if r.Method == http.MethodGet {
			s.handleGetDocumentImage(w, r, id)
		} else {
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	id, err := strconv.ParseInt(path, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetDocument(w, r, id)
	case http.MethodPut:
		s.handleSaveDocument(w, r, id)
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleGetDocument retrieves a document by ID
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request, id int64) {
	doc, err := s.store.GetDocument(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	if doc == nil {
		respondError(w, http.StatusNotFound, "document not found")
		return
	}

	respondJSON(w, http.StatusOK, doc)
}

// handleSaveDocument registers a document and its file links
func (s *Server) handleSaveDocument(w http.ResponseWriter, r *http.Request, id int64) {
	var req DocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		respondError(w, http.StatusBadRequest, "title is required")
		return
	}

	links := make([]string, 0, len(req.FileLinks))
	for _, link := range req.FileLinks {
		if key := imagekey.Normalize(link); key != "" {
			links = append(links, key)
		}
	}

	doc := &models.Document{
		ID:        id,
		Namespace: req.Namespace,
		Title:     req.Title,
	}

	if err := s.store.SaveDocument(doc, links); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save document")
		return
	}

	respondJSON(w, http.StatusOK, doc)
}

// handleGetDocumentImage retrieves a document's stored choice
func (s *Server) handleGetDocumentImage(w http.ResponseWriter, r *http.Request, id int64) {
	property := s.selector.Config().Property
	choice, err := s.store.GetDocumentImage(id, property)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	if choice == nil {
		respondError(w, http.StatusNotFound, "no image selected for document")
		return
	}

	detail := DocumentImageDetail{DocumentImage: *choice}

	img, err := s.store.GetImageByKey(choice.FileKey)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	detail.Image = img

	respondJSON(w, http.StatusOK, detail)
}

// handleImage handles image registration, metadata and file serving
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	// Extract path from URL
	path := strings.TrimPrefix(r.URL.Path, "/api/images/")
	if path == "" {
		respondError(w, http.StatusBadRequest, "image name is required")
		return
	}

	// Check if this is a file serving request
	if strings.HasSuffix(path, "/file") {
		name := strings.TrimSuffix(path, "/file")
		if r.Method == http.MethodGet {
			s.handleServeImageFile(w, r, name)
		} else {
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	// Check if this is a thumbnail request
	if strings.HasSuffix(path, "/thumb") {
		name := strings.TrimSuffix(path, "/thumb")
		if r.Method == http.MethodGet {
			s.handleServeThumb(w, r, name)
		} else {
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetImage(w, r, path)
	case http.MethodPut:
		s.handleUploadImage(w, r, path)
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleGetImage retrieves image metadata by file key
func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request, name string) {
	img, err := s.store.GetImageByKey(imagekey.Normalize(name))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	if img == nil {
		respondError(w, http.StatusNotFound, "image not found")
		return
	}

	respondJSON(w, http.StatusOK, img)
}

// handleUploadImage stores an image file and registers its metadata.
// The body is the raw image data.
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request, name string) {
	key := imagekey.Normalize(name)
	if key == "" {
		respondError(w, http.StatusBadRequest, "invalid image name")
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(data) == 0 {
		respondError(w, http.StatusBadRequest, "image data is required")
		return
	}

	info, err := storage.Probe(data)
	if err != nil {
		// Not a decodable raster image (SVG for example): keep the
		// declared content type and leave the dimensions unknown.
		info = &storage.ImageInfo{ContentType: r.Header.Get("Content-Type")}
	}
	if info.ContentType == "" {
		info.ContentType = "application/octet-stream"
	}

	existing, err := s.store.GetImageByKey(key)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	storagePath, err := s.backend.SaveImage(data, imagekey.PathSafe(key), info.ContentType)
	if err != nil {
		log.Printf("Failed to store image %s: %v", key, err)
		respondError(w, http.StatusInternalServerError, "failed to store image")
		return
	}

	// Remove a superseded object left behind at an older path
	if existing != nil && existing.StoragePath != "" && existing.StoragePath != storagePath {
		if err := s.backend.DeleteImage(existing.StoragePath); err != nil {
			log.Printf("Failed to delete old image file %s: %v", existing.StoragePath, err)
		}
	}

	img := &models.Image{
		FileKey:       key,
		Width:         info.Width,
		Height:        info.Height,
		ContentType:   info.ContentType,
		FileSizeBytes: int64(len(data)),
		StoragePath:   storagePath,
		EXIF:          info.EXIF,
	}
	if existing != nil {
		img.ID = existing.ID
	}

	if err := s.store.SaveImage(img); err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	respondJSON(w, http.StatusOK, img)
}

// handleServeImageFile serves an original image file from storage
func (s *Server) handleServeImageFile(w http.ResponseWriter, r *http.Request, name string) {
	img, err := s.store.GetImageByKey(imagekey.Normalize(name))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	if img == nil {
		respondError(w, http.StatusNotFound, "image not found")
		return
	}

	if img.StoragePath == "" {
		respondError(w, http.StatusNotFound, "image file not available")
		return
	}

	imageData, err := s.backend.ReadImage(img.StoragePath)
	if err != nil {
		log.Printf("Failed to read image file %s: %v", img.StoragePath, err)
		respondError(w, http.StatusInternalServerError, "failed to read image file")
		return
	}

	// Set content type header
	if img.ContentType != "" {
		w.Header().Set("Content-Type", img.ContentType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}

	// Set content length header
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(imageData)))

	// Set cache control headers (cache for 1 year since images rarely change)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")

	// Write image data
	w.WriteHeader(http.StatusOK)
	w.Write(imageData)
}

// handleServeThumb serves a derived thumbnail, generating and caching
// it on first request.
func (s *Server) handleServeThumb(w http.ResponseWriter, r *http.Request, name string) {
	key := imagekey.Normalize(name)

	img, err := s.store.GetImageByKey(key)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	if img == nil {
		respondError(w, http.StatusNotFound, "image not found")
		return
	}

	size := s.selector.Config().DefaultThumbSize
	if sizeStr := r.URL.Query().Get("size"); sizeStr != "" {
		fmt.Sscanf(sizeStr, "%d", &size)
	}
	if size < 1 {
		size = s.selector.Config().DefaultThumbSize
	}
	if size > maxThumbSize {
		size = maxThumbSize
	}

	if img.StoragePath == "" || img.Width <= 0 || img.Height <= 0 {
		respondError(w, http.StatusNotFound, "thumbnail not available")
		return
	}

	thumbContentType := "image/jpeg"
	if img.ContentType == "image/png" {
		thumbContentType = "image/png"
	}
	thumbPath := storage.ThumbPath(imagekey.PathSafe(key), size, thumbContentType)

	// Serve the cached rendition if one exists
	if cached, err := s.backend.ReadImage(thumbPath); err == nil {
		serveImageBytes(w, cached, thumbContentType)
		return
	}

	original, err := s.backend.ReadImage(img.StoragePath)
	if err != nil {
		log.Printf("Failed to read image file %s: %v", img.StoragePath, err)
		respondError(w, http.StatusInternalServerError, "failed to read image file")
		return
	}

	thumb, contentType, err := storage.Thumbnail(original, size)
	if err != nil {
		log.Printf("Failed to generate thumbnail for %s: %v", key, err)
		respondError(w, http.StatusInternalServerError, "failed to generate thumbnail")
		return
	}

	if err := s.backend.SaveThumb(thumb, thumbPath, contentType); err != nil {
		log.Printf("Failed to cache thumbnail %s: %v", thumbPath, err)
	}

	serveImageBytes(w, thumb, contentType)
}

// serveImageBytes writes image bytes with standard headers
func serveImageBytes(w http.ResponseWriter, data []byte, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleBlacklist reports the current blacklist snapshot
func (s *Server) handleBlacklist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snapshot, err := s.selector.Snapshot(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("blacklist unavailable: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
