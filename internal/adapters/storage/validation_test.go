package storage

import (
	"strings"
	"testing"
	"time"
)

func TestValidateContentType(t *testing.T) {
	if err := validateContentType("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet; charset=binary"); err != nil {
		t.Fatalf("expected xlsx to be accepted: %v", err)
	}
	if err := validateContentType("image/png"); err == nil {
		t.Fatalf("expected image to be rejected")
	}
}

func TestValidateFileSize(t *testing.T) {
	if err := validateFileSize(0, 10); err == nil {
		t.Fatalf("expected empty file to be rejected")
	}
	if err := validateFileSize(11, 10); err == nil {
		t.Fatalf("expected oversize file to be rejected")
	}
	if err := validateFileSize(11, 0); err != nil {
		t.Fatalf("zero max means unlimited: %v", err)
	}
}

func TestObjectKeyIsDatedAndUnique(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	a := objectKey("imports", "../customers.xlsx", now)
	b := objectKey("imports", "customers.xlsx", now)
	if !strings.HasPrefix(a, "imports/2026/03/04/customers_") || !strings.HasSuffix(a, ".xlsx") {
		t.Fatalf("unexpected key %q", a)
	}
	if a == b {
		t.Fatalf("expected unique keys")
	}
}

func TestSortNewestFirst(t *testing.T) {
	base := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	objs := []ObjectInfo{
		{Key: "a", LastModified: base},
		{Key: "c", LastModified: base.Add(2 * time.Hour)},
		{Key: "b", LastModified: base.Add(time.Hour)},
	}
	sortNewestFirst(objs)
	if objs[0].Key != "c" || objs[1].Key != "b" || objs[2].Key != "a" {
		t.Fatalf("unexpected order: %+v", objs)
	}
}
