package lifecycle

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/dalemusser/stratadrive/internal/app/store/file"
	"github.com/dalemusser/stratadrive/internal/app/system/blob"
	"github.com/dalemusser/stratadrive/internal/domain"
	"github.com/dalemusser/stratadrive/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (f *fixture) count(collection string) int64 {
	f.t.Helper()
	n, err := f.db.Collection(collection).CountDocuments(f.ctx, bson.M{})
	if err != nil {
		f.t.Fatalf("CountDocuments(%s) error = %v", collection, err)
	}
	return n
}

func TestCreateFolder(t *testing.T) {
	f := newFixture(t)
	parent := f.folder("Parent", nil)

	tests := []struct {
		name    string
		input   string
		parent  *primitive.ObjectID
		wantErr error
	}{
		{"root", "Photos", nil, nil},
		{"nested", "2024", &parent.ID, nil},
		{"trimmed", "  Spaced  ", nil, nil},
		{"blank", "   ", nil, domain.ErrInvalidInput},
		{"too long", strings.Repeat("x", MaxNameLength+1), nil, domain.ErrInvalidInput},
		{"missing parent", "Lost", ptrID(primitive.NewObjectID()), domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.e.CreateFolder(f.ctx, f.ana, tt.input, tt.parent)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("CreateFolder() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateFolder() error = %v", err)
			}
			if got.Name != strings.TrimSpace(tt.input) {
				t.Errorf("Name = %q, want %q", got.Name, strings.TrimSpace(tt.input))
			}
			if got.Deleted || got.Starred {
				t.Errorf("new folder state = %+v, want active and unstarred", got.ItemState)
			}
		})
	}
}

func ptrID(id primitive.ObjectID) *primitive.ObjectID { return &id }

func TestCreateFolder_InTrashedParent(t *testing.T) {
	f := newFixture(t)
	parent := f.folder("Old", nil)
	_ = f.e.SoftDelete(f.ctx, f.ana, parent.Ref())

	if _, err := f.e.CreateFolder(f.ctx, f.ana, "New", &parent.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("CreateFolder(trashed parent) error = %v, want NotFound", err)
	}
}

func TestUpload_ContentType(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		filename string
		given    string
		want     string
	}{
		{"notes.txt", "", "text/plain; charset=utf-8"},
		{"photo.png", "", "image/png"},
		{"data.unknownext", "", "application/octet-stream"},
		{"noext", "", "application/octet-stream"},
		{"photo.png", "image/webp", "image/webp"},
	}

	for _, tt := range tests {
		t.Run(tt.filename+"/"+tt.given, func(t *testing.T) {
			got, err := f.e.CreateFileFromUpload(f.ctx, f.ana, UploadInput{
				Filename:    tt.filename,
				ContentType: tt.given,
				Body:        strings.NewReader("x"),
			})
			if err != nil {
				t.Fatalf("CreateFileFromUpload() error = %v", err)
			}
			if got.ContentType != tt.want {
				t.Errorf("ContentType = %q, want %q", got.ContentType, tt.want)
			}
		})
	}
}

func TestUpload_FilenameNormalized(t *testing.T) {
	f := newFixture(t)
	got := f.upload(`C:\Users\ana\report.pdf`, nil, "r")
	if got.Name != "report.pdf" {
		t.Errorf("Name = %q, want %q", got.Name, "report.pdf")
	}
}

func TestUpload_FailedReadLeavesNothing(t *testing.T) {
	f := newFixture(t)

	body := io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(errors.New("connection reset")))
	_, err := f.e.CreateFileFromUpload(f.ctx, f.ana, UploadInput{Filename: "big.bin", Body: body})
	if !errors.Is(err, domain.ErrStorageFault) {
		t.Fatalf("CreateFileFromUpload() error = %v, want StorageFault", err)
	}

	if n := f.count(file.CollectionName); n != 0 {
		t.Errorf("file records = %d, want 0", n)
	}
	if n := f.count("blobs.files"); n != 0 {
		t.Errorf("stored blobs = %d, want 0", n)
	}
	if n := f.count("blobs.chunks"); n != 0 {
		t.Errorf("stored chunks = %d, want 0", n)
	}
}

func TestUpload_SizeLimit(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		content string
		max     int64
		wantErr error
	}{
		{"under", "1234567", 8, nil},
		{"exact", "12345678", 8, nil},
		{"one over", "123456789", 8, domain.ErrTooLarge},
		{"far over", strings.Repeat("x", 300*1024), 8, domain.ErrTooLarge},
		{"no limit", strings.Repeat("x", 1024), 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.e.CreateFileFromUpload(f.ctx, f.ana, UploadInput{
				Filename: tt.name + ".bin",
				Body:     strings.NewReader(tt.content),
				MaxSize:  tt.max,
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("CreateFileFromUpload() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateFileFromUpload() error = %v", err)
			}
			if got.Size != int64(len(tt.content)) {
				t.Errorf("Size = %d, want %d", got.Size, len(tt.content))
			}
		})
	}

	// Only the three accepted uploads exist, each with its content.
	if n := f.count(file.CollectionName); n != 3 {
		t.Errorf("file records = %d, want 3", n)
	}
	if n := f.count("blobs.files"); n != 3 {
		t.Errorf("stored blobs = %d, want 3", n)
	}
	active, err := f.e.ListActive(f.ctx, f.ana, nil, ListOptions{})
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	for _, got := range active.Files {
		if strings.Contains(got.Name, "over") {
			t.Errorf("oversize file %q is visible", got.Name)
		}
	}
}

func TestUpload_CancelledContextLeavesNothing(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(f.ctx)
	cancel()

	_, err := f.e.CreateFileFromUpload(ctx, f.ana, UploadInput{Filename: "a.txt", Body: strings.NewReader("a")})
	if err == nil {
		t.Fatal("CreateFileFromUpload(cancelled) should fail")
	}
	if n := f.count(file.CollectionName); n != 0 {
		t.Errorf("file records = %d, want 0", n)
	}
}

func TestUpload_Rejected(t *testing.T) {
	f := newFixture(t)
	trashed := f.folder("T", nil)
	_ = f.e.SoftDelete(f.ctx, f.ana, trashed.Ref())

	tests := []struct {
		name    string
		in      UploadInput
		wantErr error
	}{
		{"no name", UploadInput{Filename: "", Body: strings.NewReader("x")}, domain.ErrInvalidInput},
		{"no body", UploadInput{Filename: "a.txt"}, domain.ErrInvalidInput},
		{"missing folder", UploadInput{Filename: "a.txt", FolderID: ptrID(primitive.NewObjectID()), Body: strings.NewReader("x")}, domain.ErrNotFound},
		{"trashed folder", UploadInput{Filename: "a.txt", FolderID: &trashed.ID, Body: strings.NewReader("x")}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.e.CreateFileFromUpload(f.ctx, f.ana, tt.in); !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateFileFromUpload() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if n := f.count("blobs.files"); n != 0 {
		t.Errorf("rejected uploads stored %d blobs", n)
	}
}

func TestFetchContent(t *testing.T) {
	f := newFixture(t)
	file := f.upload("hello.txt", nil, "hello, drive")

	rc, meta, err := f.e.FetchContent(f.ctx, f.ana, file.Ref())
	if err != nil {
		t.Fatalf("FetchContent() error = %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "hello, drive" {
		t.Errorf("content = %q", body)
	}
	if meta.ID != file.ID || meta.Name != "hello.txt" {
		t.Errorf("meta = %+v", meta)
	}

	// Trashed files can still be downloaded.
	_ = f.e.SoftDelete(f.ctx, f.ana, file.Ref())
	rc, _, err = f.e.FetchContent(f.ctx, f.ana, file.Ref())
	if err != nil {
		t.Fatalf("FetchContent(trashed) error = %v", err)
	}
	rc.Close()
}

func TestFetchContent_Errors(t *testing.T) {
	f := newFixture(t)
	folder := f.folder("F", nil)
	file := f.upload("a.txt", nil, "a")
	if err := f.blobs.Delete(f.ctx, file.ContentID); err != nil {
		t.Fatalf("blobs.Delete() error = %v", err)
	}

	tests := []struct {
		name    string
		ref     models.ItemRef
		wantErr error
	}{
		{"folder", folder.Ref(), domain.ErrInvalidInput},
		{"missing", models.FileRef(primitive.NewObjectID()), domain.ErrNotFound},
		{"content gone", file.Ref(), domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := f.e.FetchContent(f.ctx, f.ana, tt.ref); !errors.Is(err, tt.wantErr) {
				t.Errorf("FetchContent() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	_, _, err := f.e.FetchContent(f.ctx, f.ana, file.Ref())
	if !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("FetchContent(content gone) error = %v, want blob.ErrNotFound as cause", err)
	}
	if code := domain.StatusCode(err); code != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want %d", code, http.StatusNotFound)
	}
}
