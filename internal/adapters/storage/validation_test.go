package storage

import (
	"strings"
	"testing"
)

func TestValidateContentType(t *testing.T) {
	for _, ct := range []string{"image/jpeg", "IMAGE/PNG", "image/webp; q=1"} {
		if err := validateContentType(ct); err != nil {
			t.Errorf("expected %q allowed, got %v", ct, err)
		}
	}
	for _, ct := range []string{"application/pdf", "text/csv", ""} {
		if err := validateContentType(ct); err == nil {
			t.Errorf("expected %q rejected", ct)
		}
	}
}

func TestValidateFileSize(t *testing.T) {
	if err := validateFileSize(0, 10); err == nil {
		t.Error("expected empty file rejected")
	}
	if err := validateFileSize(11, 10); err == nil {
		t.Error("expected oversized file rejected")
	}
	if err := validateFileSize(10, 10); err != nil {
		t.Errorf("expected limit-sized file allowed, got %v", err)
	}
}

func TestObjectKeySanitizesName(t *testing.T) {
	key := ObjectKey("features/abc", `C:\fotos\poste 12 (norte).JPG`)
	if !strings.HasPrefix(key, "features/abc/poste_12__norte__") || !strings.HasSuffix(key, ".jpg") {
		t.Fatalf("unexpected key %q", key)
	}
}
