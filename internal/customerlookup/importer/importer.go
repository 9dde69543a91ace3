// Package importer loads customer spreadsheet exports into the lookup cache.
package importer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"plumbing_backend/internal/adapters/storage"
	"plumbing_backend/internal/customerlookup/repository"
	"plumbing_backend/platform/logger"
	"plumbing_backend/platform/phone"

	"github.com/xuri/excelize/v2"
)

const archiveFolder = "customer-imports"

// Upserter persists imported rows.
type Upserter interface {
	Upsert(ctx context.Context, customers []repository.Customer) (int, error)
}

// Result summarizes one import.
type Result struct {
	Rows       int      `json:"rows"`
	Imported   int      `json:"imported"`
	Skipped    int      `json:"skipped"`
	Warnings   []string `json:"warnings,omitempty"`
	ArchiveKey string   `json:"archiveKey,omitempty"`
}

// Importer parses XLSX exports and upserts them into customers_xlsx.
type Importer struct {
	repo    Upserter
	storage storage.StorageService
	bucket  string
	log     *logger.Logger
}

// New creates an importer. store may be nil, in which case uploads are not archived.
func New(repo Upserter, store storage.StorageService, bucket string, log *logger.Logger) *Importer {
	return &Importer{repo: repo, storage: store, bucket: bucket, log: log}
}

// Import parses the workbook read from r and upserts every valid row.
func (i *Importer) Import(ctx context.Context, fileName string, r io.Reader, mapping Mapping) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	customers, res, err := Parse(bytes.NewReader(data), mapping)
	if err != nil {
		return nil, err
	}

	n, err := i.repo.Upsert(ctx, customers)
	if err != nil {
		return nil, err
	}
	res.Imported = n

	if i.storage != nil && i.bucket != "" {
		key, err := i.storage.UploadFile(ctx, i.bucket, archiveFolder, fileName,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", bytes.NewReader(data), int64(len(data)))
		if err != nil {
			i.log.Warn("failed to archive customer import", "error", err, "file", fileName)
		} else {
			res.ArchiveKey = key
		}
	}

	i.log.Info("customer import complete", "file", fileName, "rows", res.Rows, "imported", res.Imported, "skipped", res.Skipped)
	return res, nil
}

// ValidateUpload checks an upload against the storage limits. Without
// storage nothing is archived and any size the request allows is accepted.
func (i *Importer) ValidateUpload(contentType string, size int64) error {
	if i.storage == nil {
		return nil
	}
	if err := i.storage.ValidateContentType(contentType); err != nil {
		return err
	}
	return i.storage.ValidateFileSize(size)
}

// ListArchived lists previously archived uploads, newest first.
func (i *Importer) ListArchived(ctx context.Context) ([]storage.ObjectInfo, error) {
	if i.storage == nil {
		return nil, fmt.Errorf("object storage is not configured")
	}
	return i.storage.ListFiles(ctx, i.bucket, archiveFolder+"/")
}

// ImportArchived re-runs an import from a previously archived object.
func (i *Importer) ImportArchived(ctx context.Context, key string, mapping Mapping) (*Result, error) {
	if i.storage == nil {
		return nil, fmt.Errorf("object storage is not configured")
	}
	obj, err := i.storage.DownloadFile(ctx, i.bucket, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = obj.Close() }()

	customers, res, err := Parse(obj, mapping)
	if err != nil {
		return nil, err
	}
	n, err := i.repo.Upsert(ctx, customers)
	if err != nil {
		return nil, err
	}
	res.Imported = n
	res.ArchiveKey = key
	return res, nil
}

// Parse reads a workbook into cache rows. Rows without a numeric customer id
// or without any contact are skipped with a warning.
func Parse(r io.Reader, mapping Mapping) ([]repository.Customer, *Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet := strings.TrimSpace(mapping.Sheet)
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) < mapping.HeaderRow {
		return nil, nil, fmt.Errorf("sheet %q has no header row", sheet)
	}

	idx := headerIndex(rows[mapping.HeaderRow-1])
	col := func(name string) int {
		if i, ok := idx[strings.ToLower(strings.TrimSpace(name))]; ok {
			return i
		}
		return -1
	}
	if col(mapping.Columns.CustomerID) < 0 {
		return nil, nil, fmt.Errorf("column %q not found", mapping.Columns.CustomerID)
	}

	cols := struct{ id, name, phone, email, street, city, state, zip, active int }{
		col(mapping.Columns.CustomerID), col(mapping.Columns.Name), col(mapping.Columns.Phone),
		col(mapping.Columns.Email), col(mapping.Columns.Street), col(mapping.Columns.City),
		col(mapping.Columns.State), col(mapping.Columns.Zip), col(mapping.Columns.Active),
	}

	res := &Result{}
	var out []repository.Customer
	for n, row := range rows[mapping.HeaderRow:] {
		if isBlank(row) {
			continue
		}
		res.Rows++
		line := mapping.HeaderRow + n + 1

		id, err := strconv.ParseInt(strings.TrimSpace(cell(row, cols.id)), 10, 64)
		if err != nil || id <= 0 {
			res.Skipped++
			res.Warnings = append(res.Warnings, fmt.Sprintf("row %d: invalid customer id", line))
			continue
		}

		rawPhone := strings.TrimSpace(cell(row, cols.phone))
		rawEmail := strings.TrimSpace(cell(row, cols.email))
		if phone.Normalize(rawPhone) == "" && rawEmail == "" {
			res.Skipped++
			res.Warnings = append(res.Warnings, fmt.Sprintf("row %d: no phone or email", line))
			continue
		}

		out = append(out, repository.Customer{
			CustomerID:      id,
			Name:            strings.TrimSpace(cell(row, cols.name)),
			Phone:           rawPhone,
			PhoneNormalized: phone.Normalize(rawPhone),
			Email:           rawEmail,
			EmailNormalized: strings.ToLower(rawEmail),
			Street:          strings.TrimSpace(cell(row, cols.street)),
			City:            strings.TrimSpace(cell(row, cols.city)),
			State:           strings.ToUpper(strings.TrimSpace(cell(row, cols.state))),
			Zip:             strings.TrimSpace(cell(row, cols.zip)),
			Active:          parseActive(cell(row, cols.active), cols.active >= 0),
		})
	}
	return out, res, nil
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := idx[key]; key != "" && !dup {
			idx[key] = i
		}
	}
	return idx
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseActive treats a missing column as active and "no", "false", "0" and
// "inactive" as inactive.
func parseActive(v string, present bool) bool {
	if !present {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "no", "false", "0", "inactive", "n":
		return false
	}
	return true
}
