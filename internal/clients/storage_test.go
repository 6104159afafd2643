package clients

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGetURL_AbsoluteAndRelative(t *testing.T) {
	tmpDir := t.TempDir()

	c, err := NewLocalStorage(tmpDir, "/files", "http://example.com:8020")
	if err != nil {
		t.Fatalf("failed create storage: %v", err)
	}

	got := c.GetURL("voucher.xlsx")
	want := "http://example.com:8020/files/voucher.xlsx"
	if got != want {
		t.Fatalf("expected %s; got %s", want, got)
	}

	// without base url
	c2, _ := NewLocalStorage(tmpDir, "/files", "")
	if got2 := c2.GetURL("export.xlsx"); got2 != "/files/export.xlsx" {
		t.Fatalf("expected /files/export.xlsx; got %s", got2)
	}
}

func TestSaveAndServeFileHandler(t *testing.T) {
	tmpDir := t.TempDir()
	c, err := NewLocalStorage(tmpDir, "/files", "")
	if err != nil {
		t.Fatalf("storage init: %v", err)
	}

	content := []byte("voucher bytes")
	saved, err := c.Save(context.Background(), "voucher 7.xlsx", content)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if !strings.HasSuffix(saved, "_voucher 7.xlsx") {
		t.Fatalf("stored name %q should keep the original suffix", saved)
	}

	// serve file from BaseDir the way main does
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file := strings.TrimPrefix(r.URL.Path, "/files/")
		http.ServeFile(w, r, filepath.Join(c.BaseDir, filepath.Base(file)))
	})

	server := httptest.NewServer(h)
	defer server.Close()

	resp, err := http.Get(server.URL + "/files/" + saved)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != string(content) {
		t.Fatalf("body = %q", body)
	}
}

func TestSave_SanitizesPath(t *testing.T) {
	tmpDir := t.TempDir()
	c, err := NewLocalStorage(tmpDir, "/files", "")
	if err != nil {
		t.Fatalf("storage init: %v", err)
	}

	saved, err := c.Save(context.Background(), "../../etc/passwd", []byte("x"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if strings.Contains(saved, "/") || strings.Contains(saved, "..") {
		t.Fatalf("stored name %q escaped the base dir", saved)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, saved)); err != nil {
		t.Fatalf("file not in base dir: %v", err)
	}
}

func TestCleanupOlderThan(t *testing.T) {
	tmpDir := t.TempDir()
	c, err := NewLocalStorage(tmpDir, "/files", "")
	if err != nil {
		t.Fatalf("storage init: %v", err)
	}

	oldFile := filepath.Join(tmpDir, "old.xlsx")
	if err := os.WriteFile(oldFile, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldFile, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	freshFile := filepath.Join(tmpDir, "fresh.xlsx")
	if err := os.WriteFile(freshFile, []byte("y"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := c.CleanupOlderThan(time.Hour); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("old file should have been removed")
	}
	if _, err := os.Stat(freshFile); err != nil {
		t.Error("fresh file should survive cleanup")
	}
}
