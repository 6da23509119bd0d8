package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-zip-analyzer/internal/archive"
	"resume-zip-analyzer/internal/report"
	"resume-zip-analyzer/internal/resume"
	"resume-zip-analyzer/internal/shared/server/middleware"
	"resume-zip-analyzer/internal/shared/server/respond"
	"resume-zip-analyzer/internal/shared/storage/object"
	"resume-zip-analyzer/internal/shared/util"
)

const (
	defaultMaxUploadBytes = 50 << 20
	archiveField          = "archive"
	pageTitle             = "Resume Analyzer"
)

var errArchiveRequired = errors.New("archive is required")

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc            *Service
	Store          object.ObjectStore
	MaxUploadBytes int64
}

// NewHandler constructs a Handler. store may be nil, which disables the
// from-object route.
func NewHandler(svc *Service, store object.ObjectStore, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{Svc: svc, Store: store, MaxUploadBytes: maxUploadBytes}
}

// RegisterPages attaches the HTML upload form and results page.
func (h *Handler) RegisterPages(r gin.IRoutes) {
	r.GET("/", h.index)
	r.POST("/analyze", h.analyzePage)
}

// RegisterRoutes attaches the JSON API routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.create)
	rg.POST("/analyses/from-object", h.createFromObject)
}

func (h *Handler) index(c *gin.Context) {
	c.HTML(http.StatusOK, report.IndexPage, report.IndexData{Title: pageTitle})
}

func (h *Handler) analyzePage(c *gin.Context) {
	rep, err := h.analyzeUpload(c)
	if err != nil {
		status, _, msg := h.classifyError(err)
		c.HTML(status, report.IndexPage, report.IndexData{Title: pageTitle, Error: msg})
		return
	}
	c.HTML(http.StatusOK, report.ResultsPage, report.ResultsData{Title: "Results: " + rep.ArchiveName, Report: rep})
}

func (h *Handler) create(c *gin.Context) {
	rep, err := h.analyzeUpload(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.writeReport(c, rep)
}

type createFromObjectRequest struct {
	Key string `json:"key"`
}

func (h *Handler) createFromObject(c *gin.Context) {
	if h.Store == nil {
		respond.Error(c, http.StatusServiceUnavailable, "store_unavailable", "object store is not configured", nil)
		return
	}

	var req createFromObjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "key is required", nil)
		return
	}

	ctx := h.requestContext(c)
	rc, err := h.Store.Open(ctx, req.Key)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer rc.Close()

	rep, err := h.run(ctx, c, rc, path.Base(req.Key))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.writeReport(c, rep)
}

func (h *Handler) analyzeUpload(c *gin.Context) (*resume.Report, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	fileHeader, err := c.FormFile(archiveField)
	if err != nil {
		if isTooLarge(err) {
			return nil, err
		}
		return nil, errArchiveRequired
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	return h.run(h.requestContext(c), c, file, uploadName(fileHeader))
}

func (h *Handler) run(ctx context.Context, c *gin.Context, r io.Reader, name string) (*resume.Report, error) {
	c.Set(middleware.ArchiveNameKey, name)
	rep, err := h.Svc.Analyze(ctx, r, name)
	if err != nil {
		return nil, err
	}
	c.Set(middleware.RunIDKey, rep.RunID)
	c.Set(middleware.FileCountKey, len(rep.Outcomes))
	return rep, nil
}

func (h *Handler) writeReport(c *gin.Context, rep *resume.Report) {
	if !strings.EqualFold(c.Query("format"), "xlsx") {
		respond.OK(c, rep)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, rep); err != nil {
		respond.Error(c, http.StatusInternalServerError, "export_failed", "failed to render workbook", nil)
		return
	}
	respond.Attachment(c, exportName(rep.ArchiveName), report.ContentTypeXLSX, buf.Bytes())
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, code, msg := h.classifyError(err)
	respond.Error(c, status, code, msg, nil)
}

func (h *Handler) classifyError(err error) (int, string, string) {
	var archiveErr *archive.Error
	switch {
	case errors.Is(err, errArchiveRequired):
		return http.StatusBadRequest, "validation_error", err.Error()
	case isTooLarge(err):
		return http.StatusRequestEntityTooLarge, "archive_too_large", fmt.Sprintf("archive exceeds %d MB", h.MaxUploadBytes>>20)
	case errors.As(err, &archiveErr):
		return http.StatusUnprocessableEntity, "invalid_archive", archiveErr.Error()
	case errors.Is(err, object.ErrNotFound):
		return http.StatusNotFound, "not_found", "archive not found"
	case errors.Is(err, ErrNotConfigured):
		return http.StatusServiceUnavailable, "unavailable", "analysis service is not configured"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "cancelled", "analysis was cancelled"
	default:
		return http.StatusInternalServerError, "internal", "failed to analyze archive"
	}
}

func (h *Handler) requestContext(c *gin.Context) context.Context {
	return WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

func uploadName(fh *multipart.FileHeader) string {
	name := strings.TrimSpace(path.Base(strings.ReplaceAll(fh.Filename, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return "upload.zip"
	}
	return name
}

func exportName(archiveName string) string {
	base := strings.TrimSuffix(archiveName, path.Ext(archiveName))
	clean, err := util.SanitizeFileName(base)
	if err != nil {
		clean = "analysis"
	}
	clean = strings.Map(func(r rune) rune {
		if r == '"' || r < 0x20 {
			return '_'
		}
		return r
	}, clean)
	return clean + "-resumes.xlsx"
}
