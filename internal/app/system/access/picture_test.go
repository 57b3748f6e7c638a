package access

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	userstore "github.com/dalemusser/stratadrive/internal/app/store/users"
	"github.com/dalemusser/stratadrive/internal/app/system/blob"
	"github.com/dalemusser/stratadrive/internal/domain"
	"github.com/dalemusser/stratadrive/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// brokenDelete fails every Delete.
type brokenDelete struct {
	blob.Store
}

func (brokenDelete) Delete(context.Context, string) error { return errors.New("backend down") }

type memOrphans struct {
	ids []string
}

func (m *memOrphans) Record(_ context.Context, contentID string, _, _ primitive.ObjectID, _ error) error {
	m.ids = append(m.ids, contentID)
	return nil
}

func newPictureService(t *testing.T) (*Service, Identity, blob.Store, *mongo.Database) {
	t.Helper()
	svc, db := newService(t)
	blobs := blob.NewGridFS(db, "pictures")
	svc.SetPictureStore(blobs, nil)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	_, ident, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@x.com", Password: "pw123"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return svc, ident, blobs, db
}

func readPicture(t *testing.T, svc *Service, ident Identity) (string, string) {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	rc, ct, err := svc.Picture(ctx, ident)
	if err != nil {
		t.Fatalf("Picture() error = %v", err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read picture: %v", err)
	}
	return string(b), ct
}

func TestPicture_UploadReplaceRemove(t *testing.T) {
	svc, ident, blobs, _ := newPictureService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := svc.SetPicture(ctx, ident, strings.NewReader("png-bytes"), "image/png")
	if err != nil {
		t.Fatalf("SetPicture() error = %v", err)
	}
	first := u.PictureID
	if first == "" {
		t.Fatal("SetPicture() left PictureID empty")
	}
	if body, ct := readPicture(t, svc, ident); body != "png-bytes" || ct != "image/png" {
		t.Errorf("Picture() = %q %q, want png-bytes image/png", body, ct)
	}

	u, err = svc.SetPicture(ctx, ident, strings.NewReader("jpeg-bytes"), "image/jpeg; charset=binary")
	if err != nil {
		t.Fatalf("SetPicture(replace) error = %v", err)
	}
	if u.PictureID == first {
		t.Error("replacing the picture kept the old content id")
	}
	if body, ct := readPicture(t, svc, ident); body != "jpeg-bytes" || ct != "image/jpeg" {
		t.Errorf("Picture() = %q %q, want jpeg-bytes image/jpeg", body, ct)
	}
	if _, err := blobs.Get(ctx, first); !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("replaced content Get() error = %v, want ErrNotFound", err)
	}

	if err := svc.RemovePicture(ctx, ident); err != nil {
		t.Fatalf("RemovePicture() error = %v", err)
	}
	if _, _, err := svc.Picture(ctx, ident); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Picture() after remove error = %v, want NotFound", err)
	}
	if _, err := blobs.Get(ctx, u.PictureID); !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("removed content Get() error = %v, want ErrNotFound", err)
	}
	if err := svc.RemovePicture(ctx, ident); err != nil {
		t.Errorf("RemovePicture() with none error = %v", err)
	}
}

func TestSetPicture_Errors(t *testing.T) {
	svc, ident, _, db := newPictureService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	tests := []struct {
		name        string
		ident       Identity
		body        io.Reader
		contentType string
		want        error
	}{
		{"svg", ident, strings.NewReader("<svg/>"), "image/svg+xml", domain.ErrInvalidInput},
		{"not an image", ident, strings.NewReader("hi"), "text/plain", domain.ErrInvalidInput},
		{"no type", ident, strings.NewReader("x"), "", domain.ErrInvalidInput},
		{"too large", ident, bytes.NewReader(make([]byte, MaxPictureSize+1)), "image/png", domain.ErrTooLarge},
		{"signed out", Identity{}, strings.NewReader("x"), "image/png", domain.ErrAuthenticationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.SetPicture(ctx, tt.ident, tt.body, tt.contentType); !errors.Is(err, tt.want) {
				t.Errorf("SetPicture() error = %v, want %v", err, tt.want)
			}
		})
	}

	n, _ := db.Collection("pictures.files").CountDocuments(ctx, bson.M{})
	if n != 0 {
		t.Errorf("pictures.files = %d after failed uploads, want 0", n)
	}
	if _, _, err := svc.Picture(ctx, ident); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Picture() error = %v, want NotFound", err)
	}
}

func TestSetPicture_NoStore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(userstore.New(db), nil, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()
	_, ident, _ := svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@x.com", Password: "pw123"})

	if _, err := svc.SetPicture(ctx, ident, strings.NewReader("x"), "image/png"); !errors.Is(err, domain.ErrStorageFault) {
		t.Errorf("SetPicture() without store error = %v, want StorageFault", err)
	}
}

func TestSetPicture_FailedDeleteRecordsOrphan(t *testing.T) {
	svc, ident, blobs, _ := newPictureService(t)
	orphans := &memOrphans{}
	svc.SetPictureStore(brokenDelete{blobs}, orphans)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := svc.SetPicture(ctx, ident, strings.NewReader("a"), "image/png")
	if err != nil {
		t.Fatalf("SetPicture() error = %v", err)
	}
	if _, err := svc.SetPicture(ctx, ident, strings.NewReader("b"), "image/png"); err != nil {
		t.Fatalf("SetPicture(replace) error = %v", err)
	}
	if len(orphans.ids) != 1 || orphans.ids[0] != u.PictureID {
		t.Errorf("orphans = %v, want [%s]", orphans.ids, u.PictureID)
	}
}
