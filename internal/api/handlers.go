package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Pland4r/project-ai/internal/analysis"
	"github.com/Pland4r/project-ai/internal/llm"
	"github.com/Pland4r/project-ai/internal/models"
	"github.com/Pland4r/project-ai/internal/service"
	"github.com/Pland4r/project-ai/internal/table"
)

const (
	DefaultUploadDir = "./uploads"
	MaxFileSize      = 100 * 1024 * 1024 // 100MB
)

// SourceOpener connects to a database given a DSN
type SourceOpener func(ctx context.Context, dsn string) (service.TableSource, error)

// OpenPostgres is the default SourceOpener
func OpenPostgres(ctx context.Context, dsn string) (service.TableSource, error) {
	return service.OpenPostgres(ctx, dsn)
}

// Options configures a Handler. Zero values select defaults.
type Options struct {
	UploadDir      string
	MaxFileSize    int64
	SummaryTimeout time.Duration
	Pipeline       *analysis.Pipeline
	Summarizer     llm.Summarizer
	OpenSource     SourceOpener
	// DefaultDSN is used by /api/db/analyze when the request has no dsn
	DefaultDSN string
	Logger     *zap.Logger
}

type Handler struct {
	uploadDir      string
	maxFileSize    int64
	summaryTimeout time.Duration
	loadOptions    table.Options
	defaultDSN     string

	Pipeline   *analysis.Pipeline
	Profiler   *service.QualityProfiler
	Trends     *service.TrendAnalyzer
	Summarizer llm.Summarizer
	OpenSource SourceOpener
	Logger     *zap.Logger
}

func NewHandler(opts Options) *Handler {
	h := &Handler{
		uploadDir:      opts.UploadDir,
		maxFileSize:    opts.MaxFileSize,
		summaryTimeout: opts.SummaryTimeout,
		loadOptions:    table.DefaultOptions(),
		defaultDSN:     opts.DefaultDSN,
		Pipeline:       opts.Pipeline,
		Profiler:       service.NewQualityProfiler(),
		Trends:         service.NewTrendAnalyzer(),
		Summarizer:     opts.Summarizer,
		OpenSource:     opts.OpenSource,
		Logger:         opts.Logger,
	}
	if h.uploadDir == "" {
		h.uploadDir = DefaultUploadDir
	}
	if h.maxFileSize <= 0 {
		h.maxFileSize = MaxFileSize
	}
	if h.summaryTimeout <= 0 {
		h.summaryTimeout = 30 * time.Second
	}
	if h.Logger == nil {
		h.Logger = zap.NewNop()
	}
	if h.Pipeline == nil {
		h.Pipeline = analysis.NewPipeline(analysis.Options{}, h.Logger)
	}
	if h.Summarizer == nil {
		h.Summarizer = llm.Disabled{}
	}
	if h.OpenSource == nil {
		h.OpenSource = OpenPostgres
	}
	return h
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)

	r.Post("/upload", h.Upload)
	r.Post("/analyze", h.Analyze)

	r.Post("/api/analyze-file", h.AnalyzeFile)
	r.Post("/api/db/analyze", h.AnalyzeTable)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

// Upload stores a .csv or .xlsx file under the upload directory
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		writeError(w, http.StatusBadRequest, "File too large or not a multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file part")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "No selected file")
		return
	}
	if !table.SupportedExtension(header.Filename) {
		writeError(w, http.StatusBadRequest, "Invalid file type")
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		writeFailure(w, h.Logger, fmt.Errorf("create upload dir: %w", err))
		return
	}

	filePath := filepath.Join(h.uploadDir, uuid.NewString()+"_"+sanitizeFilename(header.Filename))
	if err := saveTo(filePath, file); err != nil {
		writeFailure(w, h.Logger, err)
		return
	}

	h.Logger.Info("file uploaded",
		zap.String("name", header.Filename),
		zap.String("path", filePath),
		zap.Int64("size", header.Size),
	)
	writeJSON(w, http.StatusOK, models.UploadResponse{
		Message:  "File uploaded successfully",
		FilePath: filePath,
	})
}

// Analyze runs the pipeline over a previously uploaded file
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	path, ok := h.resolveUpload(req.FilePath)
	if !ok {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	raw, err := table.Load(path, h.loadOptions)
	if err != nil {
		h.writeLoadError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.analyze(r.Context(), raw))
}

// AnalyzeFile uploads and analyzes a file in one request without keeping it
func (h *Handler) AnalyzeFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		writeError(w, http.StatusBadRequest, "File too large or not a multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Error retrieving file")
		return
	}
	defer file.Close()

	if !table.SupportedExtension(header.Filename) {
		writeError(w, http.StatusBadRequest, "Invalid file type")
		return
	}

	tempFile, err := os.CreateTemp("", "analyze-*"+strings.ToLower(filepath.Ext(header.Filename)))
	if err != nil {
		writeFailure(w, h.Logger, fmt.Errorf("create temp file: %w", err))
		return
	}
	tempFilePath := tempFile.Name()
	defer os.Remove(tempFilePath)

	_, err = io.Copy(tempFile, file)
	if closeErr := tempFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		writeFailure(w, h.Logger, fmt.Errorf("save upload: %w", err))
		return
	}

	raw, err := table.Load(tempFilePath, h.loadOptions)
	if err != nil {
		h.writeLoadError(w, err)
		return
	}
	raw.Source = header.Filename

	writeJSON(w, http.StatusOK, h.analyze(r.Context(), raw))
}

// AnalyzeTable reads a Postgres table and analyzes it
func (h *Handler) AnalyzeTable(w http.ResponseWriter, r *http.Request) {
	var req models.DBAnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	dsn := req.DSN
	if dsn == "" {
		dsn = h.defaultDSN
	}
	if dsn == "" || req.Table == "" {
		writeError(w, http.StatusBadRequest, "dsn and table are required")
		return
	}

	src, err := h.OpenSource(r.Context(), dsn)
	if err != nil {
		writeFailure(w, h.Logger, fmt.Errorf("connect: %w", err))
		return
	}
	defer src.Close()

	raw, err := src.LoadTable(r.Context(), req.Table, req.Limit)
	if errors.Is(err, service.ErrUnknownTable) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeFailure(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, h.analyze(r.Context(), raw))
}

func (h *Handler) analyze(ctx context.Context, raw *table.RawTable) models.AnalyzeResponse {
	res := h.Pipeline.Run(raw)
	quality := h.Profiler.ProfileAllColumns(raw)

	ctx, cancel := context.WithTimeout(ctx, h.summaryTimeout)
	defer cancel()
	summary := llm.SummaryOrPlaceholder(ctx, h.Summarizer, res.Snapshot)

	h.Logger.Info("analysis complete",
		zap.String("source", raw.Source),
		zap.String("schema", string(res.Variant)),
		zap.Int("rows", res.Report.RowsOut),
		zap.Strings("warnings", res.Warnings),
	)
	return models.NewAnalyzeResponse(res, summary, quality, h.Trends.Analyze(res.Daily))
}

// resolveUpload accepts only existing regular files inside the upload dir
func (h *Handler) resolveUpload(p string) (string, bool) {
	if strings.TrimSpace(p) == "" {
		return "", false
	}
	root, err := filepath.Abs(h.uploadDir)
	if err != nil {
		return "", false
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return abs, true
}

func (h *Handler) writeLoadError(w http.ResponseWriter, err error) {
	if table.IsLoadError(err) {
		h.Logger.Warn("load failed", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error(), Trace: errorTrace(err)})
		return
	}
	writeFailure(w, h.Logger, err)
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	if name == "" {
		name = "upload"
	}
	return name
}

func saveTo(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return fmt.Errorf("save upload: %w", err)
	}
	return dst.Close()
}
