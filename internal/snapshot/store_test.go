package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSaveGetReadImage(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	meta, err := store.Save(Meta{SurfaceID: 2, URL: "https://example.com", Width: 768, Height: 512}, []byte{0xff, 0xd8, 0xff})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if meta.ID == "" || meta.Format != "jpeg" || meta.SizeBytes != 3 {
		t.Fatalf("Save() = %+v; want id, jpeg format, 3 bytes", meta)
	}

	got, err := store.Get(meta.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.SurfaceID != 2 || got.URL != "https://example.com" {
		t.Fatalf("Get() = %+v; want surface 2 example.com", got)
	}

	img, format, err := store.ReadImage(meta.ID)
	if err != nil {
		t.Fatalf("ReadImage() error = %v", err)
	}
	if format != "jpeg" || !bytes.Equal(img, []byte{0xff, 0xd8, 0xff}) {
		t.Fatalf("ReadImage() = %v,%q; want jpeg bytes", img, format)
	}
}

func TestListNewestFirst(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := store.Save(Meta{SurfaceID: i + 1, CreatedAt: base.Add(time.Duration(i) * time.Minute)}, []byte{byte(i)}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(metas) != 3 || metas[0].SurfaceID != 3 || metas[2].SurfaceID != 1 {
		t.Fatalf("List() order = %+v; want newest first", metas)
	}
}

func TestGetRejectsBadAndUnknownIDs(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if _, err := store.Get("../../etc/passwd"); err == nil {
		t.Fatal("Get(traversal) error = nil; want error")
	}
	if _, err := store.Get("123e4567-e89b-12d3-a456-426614174000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(unknown) error = %v; want ErrNotFound", err)
	}
}

func TestDeleteLogsImageCleanupFailureWhenImageMissing(t *testing.T) {
	dir := t.TempDir()
	store := &Store{dir: dir}
	id := "123e4567-e89b-12d3-a456-426614174000"

	metaBytes, err := json.Marshal(Meta{ID: id, Format: "jpeg"})
	if err != nil {
		t.Fatalf("json.Marshal() failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, id+".json"), metaBytes, 0o644); err != nil {
		t.Fatalf("os.WriteFile() failed: %v", err)
	}

	var buf bytes.Buffer
	oldLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() {
		slog.SetDefault(oldLogger)
	})

	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete() = %v; want nil", err)
	}
	if !strings.Contains(buf.String(), "snapshot image cleanup failed") {
		t.Fatalf("expected image cleanup debug log, got %q", buf.String())
	}
	if _, err := store.Get(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after Delete error = %v; want ErrNotFound", err)
	}
}
