package upload

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hfurst/taskpay/internal/apperr"
)

func TestSaveAndServePath(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	url, err := s.Save(KindProof, "receipt.pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(url, "/uploads/userFiles/") {
		t.Errorf("url = %q, want /uploads/userFiles/ prefix", url)
	}
	if !strings.HasSuffix(url, ".pdf") {
		t.Errorf("url = %q, want .pdf suffix", url)
	}

	// The file exists on disk under the base dir.
	rel := strings.TrimPrefix(url, "/uploads/")
	data, err := os.ReadFile(filepath.Join(s.BaseDir(), rel))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "%PDF-1.4" {
		t.Errorf("content = %q", data)
	}
}

func TestSaveRejectsUnknownExtension(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	_, err = s.Save(KindAttachment, "malware.exe", strings.NewReader("MZ"))
	if ae := apperr.From(err); ae == nil || ae.Code != apperr.CodeValidation {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestSaveRejectsOversizeFile(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	big := strings.NewReader(strings.Repeat("x", MaxFileSize+1))
	_, err = s.Save(KindProof, "huge.zip", big)
	if ae := apperr.From(err); ae == nil || ae.Code != apperr.CodeValidation {
		t.Fatalf("err = %v, want validation", err)
	}

	// Nothing may be left on disk, truncated or otherwise.
	entries, err := os.ReadDir(filepath.Join(s.BaseDir(), KindProof))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("found %d leftover files after rejected upload", len(entries))
	}
}

func TestSaveAcceptsFileAtSizeLimit(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	exact := strings.NewReader(strings.Repeat("x", MaxFileSize))
	if _, err := s.Save(KindProof, "edge.zip", exact); err != nil {
		t.Fatalf("save at limit: %v", err)
	}
}

func TestSaveUniqueNames(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	u1, err := s.Save(KindImage, "avatar.png", strings.NewReader("a"))
	if err != nil {
		t.Fatalf("save 1: %v", err)
	}
	u2, err := s.Save(KindImage, "avatar.png", strings.NewReader("b"))
	if err != nil {
		t.Fatalf("save 2: %v", err)
	}
	if u1 == u2 {
		t.Errorf("identical urls for two uploads: %q", u1)
	}
}
