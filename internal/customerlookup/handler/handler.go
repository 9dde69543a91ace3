package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"plumbing_backend/internal/customerlookup/importer"
	"plumbing_backend/internal/customerlookup/service"
	"plumbing_backend/internal/customerlookup/transport"
	"plumbing_backend/platform/httpkit"
	"plumbing_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const maxImportBytes = 32 << 20

// Handler handles HTTP requests for customer lookup and imports.
type Handler struct {
	svc      *service.Service
	importer *importer.Importer
	val      *validator.Validator
}

// New creates a new customer lookup handler.
func New(svc *service.Service, imp *importer.Importer, val *validator.Validator) *Handler {
	return &Handler{svc: svc, importer: imp, val: val}
}

// Lookup handles POST /api/customers/lookup
func (h *Handler) Lookup(c *gin.Context) {
	var req transport.LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	source, err := service.ParseSource(req.Source)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	res, err := h.svc.Search(c.Request.Context(), service.Options{Phone: req.Phone, Email: req.Email, Source: source})
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.LookupResponse{Found: res.Found}
	if m := res.BestMatch; m != nil {
		id := m.CustomerID
		resp.CustomerID = &id
		resp.Name = m.Name
		resp.Source = m.Source
		resp.Score = m.Score
		if m.Address.IsComplete() {
			addr := strings.Join([]string{m.Address.Street, m.Address.City, m.Address.State + " " + m.Address.Zip}, ", ")
			resp.Address = &addr
		}
	}
	httpkit.OK(c, resp)
}

// Import handles POST /api/v1/admin/customers/import (multipart "file", optional "mapping").
func (h *Handler) Import(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "file is required", err.Error())
		return
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".xlsx") {
		httpkit.Error(c, http.StatusBadRequest, "only .xlsx files are supported", nil)
		return
	}

	if err := h.importer.ValidateUpload(fh.Header.Get("Content-Type"), fh.Size); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid upload", err.Error())
		return
	}

	mapping := importer.DefaultMapping()
	if mh, err := c.FormFile("mapping"); err == nil {
		mf, err := mh.Open()
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "unreadable mapping", err.Error())
			return
		}
		mapping, err = importer.LoadMapping(mf)
		_ = mf.Close()
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid mapping", err.Error())
			return
		}
	}

	f, err := fh.Open()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "unreadable file", err.Error())
		return
	}
	defer func() { _ = f.Close() }()

	res, err := h.importer.Import(c.Request.Context(), fh.Filename, f, mapping)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "import failed", err.Error())
		return
	}
	httpkit.OK(c, res)
}

// ListImports handles GET /api/v1/admin/customers/imports
func (h *Handler) ListImports(c *gin.Context) {
	objs, err := h.importer.ListArchived(c.Request.Context())
	if err != nil {
		httpkit.Error(c, http.StatusServiceUnavailable, "import archive unavailable", err.Error())
		return
	}
	resp := transport.ArchiveListResponse{Items: make([]transport.ArchiveItem, 0, len(objs))}
	for _, o := range objs {
		resp.Items = append(resp.Items, transport.ArchiveItem{Key: o.Key, Size: o.Size, LastModified: o.LastModified})
	}
	httpkit.OK(c, resp)
}

// Reimport handles POST /api/v1/admin/customers/imports/reimport
func (h *Handler) Reimport(c *gin.Context) {
	var req transport.ReimportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	res, err := h.importer.ImportArchived(c.Request.Context(), req.Key, importer.DefaultMapping())
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "import failed", err.Error())
		return
	}
	httpkit.OK(c, res)
}
