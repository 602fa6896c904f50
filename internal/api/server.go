// Package api exposes the HTTP surface: the upload endpoint that feeds the
// ingestion pipeline and read-only projections of uploads and user records.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/config"
	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/model"
	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/repository"
)

// UploadStore is the persistence surface the API needs for uploads.
type UploadStore interface {
	Create(ctx context.Context, up *model.FileUpload) error
	Get(ctx context.Context, id string) (*model.FileUpload, error)
	List(ctx context.Context, limit, offset int) ([]model.FileUpload, int, error)
}

// UserStore lists persisted user records.
type UserStore interface {
	List(ctx context.Context, f repository.UserFilter) ([]model.UserRecord, int, error)
}

// BlobStore stores the raw uploaded bytes.
type BlobStore interface {
	UploadStream(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) error
}

// EnqueueFunc dispatches an ingestion job for a newly created upload.
type EnqueueFunc func(ctx context.Context, fileID string) error

// Server hosts the HTTP handlers.
type Server struct {
	cfg     *config.Config
	uploads UploadStore
	users   UserStore
	blobs   BlobStore
	enqueue EnqueueFunc
	server  *http.Server
}

// New constructs a Server.
func New(cfg *config.Config, uploads UploadStore, users UserStore, blobs BlobStore, enqueue EnqueueFunc) *Server {
	return &Server{
		cfg:     cfg,
		uploads: uploads,
		users:   users,
		blobs:   blobs,
		enqueue: enqueue,
	}
}

// Routes returns the handler tree so tests can drive it via httptest.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/file-upload/", s.handleFileUploadRoute)
	mux.HandleFunc("/v1/user-data/", s.handleUserData)
	return corsMiddleware(loggingMiddleware(mux))
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    s.cfg.Address,
		Handler: s.Routes(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	log.Printf("api listening on %s", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFileUploadRoute(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/file-upload/"), "/")
	switch {
	case rest == "" && r.Method == http.MethodPost:
		s.handleUpload(w, r)
	case rest == "" && r.Method == http.MethodGet:
		s.handleListUploads(w, r)
	case rest != "" && r.Method == http.MethodGet:
		s.handleGetUpload(w, r, rest)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleUpload accepts a single multipart file, gates it before the core is
// ever involved, stores the blob, creates the pending row, and explicitly
// enqueues the ingestion job.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+1024)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody("No file uploaded."))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody("No file uploaded."))
		return
	}
	defer file.Close()

	// Only CSV is admitted at the boundary even though the reader also
	// understands spreadsheets; those arrive through operator-side paths.
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		respondJSON(w, http.StatusBadRequest, errorBody("Invalid file type. Only CSV files are allowed."))
		return
	}

	if header.Size == 0 {
		respondJSON(w, http.StatusBadRequest, errorBody("File is empty."))
		return
	}

	fileID := uuid.NewString()
	objectKey := fmt.Sprintf("uploads/%s/%s", fileID, filepath.Base(header.Filename))
	if err := s.blobs.UploadStream(ctx, objectKey, file, header.Size, "text/csv"); err != nil {
		log.Printf("upload to storage failed: %v", err)
		respondJSON(w, http.StatusInternalServerError, errorBody("Failed to store file."))
		return
	}
	up := &model.FileUpload{
		ID:        fileID,
		FileName:  header.Filename,
		ObjectKey: objectKey,
	}
	if err := s.uploads.Create(ctx, up); err != nil {
		log.Printf("create upload failed: %v", err)
		respondJSON(w, http.StatusInternalServerError, errorBody("Failed to store metadata."))
		return
	}
	if err := s.enqueue(ctx, fileID); err != nil {
		log.Printf("enqueue failed: %v", err)
		respondJSON(w, http.StatusInternalServerError, errorBody("Failed to queue file for processing."))
		return
	}
	respondJSON(w, http.StatusCreated, up)
}

func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request, id string) {
	up, err := s.uploads.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			respondJSON(w, http.StatusNotFound, errorBody("The requested resource could not be found."))
			return
		}
		log.Printf("get upload: %v", err)
		respondJSON(w, http.StatusInternalServerError, errorBody("An internal server error occurred."))
		return
	}
	respondJSON(w, http.StatusOK, up)
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	page, pageSize := s.pagination(r)
	items, total, err := s.uploads.List(r.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		log.Printf("list uploads: %v", err)
		respondJSON(w, http.StatusInternalServerError, errorBody("An internal server error occurred."))
		return
	}
	if items == nil {
		items = []model.FileUpload{}
	}
	respondJSON(w, http.StatusOK, paginated(r, page, pageSize, total, items))
}

func (s *Server) handleUserData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	page, pageSize := s.pagination(r)
	q := r.URL.Query()
	filter := repository.UserFilter{
		FirstName:   q.Get("first_name"),
		LastName:    q.Get("last_name"),
		PhoneNumber: q.Get("phone_number"),
		Email:       q.Get("email"),
		Search:      q.Get("search"),
		Ordering:    q.Get("ordering"),
		Limit:       pageSize,
		Offset:      (page - 1) * pageSize,
	}
	if rangeParam := q.Get("birth_date"); rangeParam != "" {
		from, to, err := parseBirthRange(rangeParam)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, errorBody("Invalid birth_date range. Use start,end in YYYY-MM-DD form."))
			return
		}
		filter.BirthFrom = from
		filter.BirthTo = to
	}
	items, total, err := s.users.List(r.Context(), filter)
	if err != nil {
		log.Printf("list user records: %v", err)
		respondJSON(w, http.StatusInternalServerError, errorBody("An internal server error occurred."))
		return
	}
	results := make([]userView, 0, len(items))
	for _, rec := range items {
		results = append(results, newUserView(rec))
	}
	respondJSON(w, http.StatusOK, paginated(r, page, pageSize, total, results))
}

// userView renders a record with the wire-format birth date.
type userView struct {
	FirstName            string `json:"first_name"`
	LastName             string `json:"last_name"`
	NationalID           string `json:"national_id"`
	BirthDate            string `json:"birth_date"`
	Address              string `json:"address"`
	Country              string `json:"country"`
	PhoneNumber          string `json:"phone_number"`
	Email                string `json:"email"`
	FingerPrintSignature string `json:"finger_print_signature"`
}

func newUserView(rec model.UserRecord) userView {
	return userView{
		FirstName:            rec.FirstName,
		LastName:             rec.LastName,
		NationalID:           rec.NationalID,
		BirthDate:            rec.BirthDateString(),
		Address:              rec.Address,
		Country:              rec.Country,
		PhoneNumber:          rec.PhoneNumber,
		Email:                rec.Email,
		FingerPrintSignature: rec.FingerPrintSignature,
	}
}

// pageEnvelope matches the pagination shape clients already consume.
type pageEnvelope struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  any     `json:"results"`
}

func paginated(r *http.Request, page, pageSize, total int, results any) pageEnvelope {
	env := pageEnvelope{Count: total, Results: results}
	if page*pageSize < total {
		env.Next = pageURL(r, page+1, pageSize)
	}
	if page > 1 {
		env.Previous = pageURL(r, page-1, pageSize)
	}
	return env
}

func pageURL(r *http.Request, page, pageSize int) *string {
	q := r.URL.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	u := r.URL.Path + "?" + q.Encode()
	return &u
}

func (s *Server) pagination(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = s.cfg.PageSize
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(q.Get("page_size")); err == nil && v > 0 {
		pageSize = v
	}
	if pageSize > s.cfg.MaxPageSize {
		pageSize = s.cfg.MaxPageSize
	}
	return page, pageSize
}

func parseBirthRange(s string) (*time.Time, *time.Time, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return nil, nil, errors.New("expected start,end")
	}
	from, err := time.Parse("2006-01-02", strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, nil, err
	}
	to, err := time.Parse("2006-01-02", strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, nil, err
	}
	return &from, &to, nil
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}
