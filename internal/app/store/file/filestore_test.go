package file

import (
	"testing"
	"time"

	"github.com/dalemusser/stratadrive/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	folderID := primitive.NewObjectID()
	input := CreateInput{
		UserID:      userID,
		FolderID:    &folderID,
		Name:        "Report.PDF",
		Size:        1024,
		ContentType: "application/pdf",
		ContentID:   "blob-1",
	}

	file, err := store.Create(ctx, input)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if file.NameCI != "report.pdf" {
		t.Errorf("NameCI = %q, want %q", file.NameCI, "report.pdf")
	}

	got, err := store.Get(ctx, userID, file.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ContentID != "blob-1" || got.Size != 1024 {
		t.Errorf("got = %+v, want content blob-1 size 1024", got)
	}
	if got.FolderID == nil || *got.FolderID != folderID {
		t.Errorf("FolderID = %v, want %v", got.FolderID, folderID)
	}
}

func TestStore_ListActive_Filters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	folderID := primitive.NewObjectID()

	mk := func(name, ct string, folder *primitive.ObjectID) {
		if _, err := store.Create(ctx, CreateInput{UserID: userID, FolderID: folder, Name: name, ContentType: ct}); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
	}
	mk("photo.png", "image/png", nil)
	mk("notes.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", nil)
	mk("a+b.txt", "text/plain", nil)
	mk("inside.png", "image/png", &folderID)

	tests := []struct {
		name string
		opts ListOptions
		want int
	}{
		{"root only", ListOptions{}, 3},
		{"prefix type", ListOptions{ContentType: "image/"}, 1},
		{"contains type", ListOptions{ContentType: "~word,pdf"}, 1},
		{"search", ListOptions{Search: "NOTES"}, 1},
		{"search is literal", ListOptions{Search: "a+b"}, 1},
		{"any parent", ListOptions{ContentType: "image/", AnyParent: true}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := store.ListActive(ctx, userID, nil, tt.opts)
			if err != nil {
				t.Fatalf("ListActive() error = %v", err)
			}
			if len(files) != tt.want {
				t.Errorf("ListActive() returned %d files, want %d", len(files), tt.want)
			}
		})
	}

	inFolder, _ := store.ListActive(ctx, userID, &folderID, ListOptions{})
	if len(inFolder) != 1 || inFolder[0].Name != "inside.png" {
		t.Errorf("folder listing = %v, want only inside.png", inFolder)
	}
}

func TestStore_ListRecent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	first, _ := store.Create(ctx, CreateInput{UserID: userID, Name: "first.txt"})
	time.Sleep(5 * time.Millisecond)
	second, _ := store.Create(ctx, CreateInput{UserID: userID, Name: "second.txt"})
	time.Sleep(5 * time.Millisecond)
	_ = store.Rename(ctx, userID, first.ID, "first-renamed.txt")

	recent, err := store.ListRecent(ctx, userID, 10)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("ListRecent() returned %d, want 2", len(recent))
	}
	if recent[0].ID != first.ID || recent[1].ID != second.ID {
		t.Errorf("order = [%s %s], want [first-renamed.txt second.txt]", recent[0].Name, recent[1].Name)
	}

	one, _ := store.ListRecent(ctx, userID, 1)
	if len(one) != 1 {
		t.Errorf("ListRecent(1) returned %d, want 1", len(one))
	}
}

func TestStore_InFolders(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	f1, f2 := primitive.NewObjectID(), primitive.NewObjectID()
	_, _ = store.Create(ctx, CreateInput{UserID: userID, Name: "a", FolderID: &f1})
	b, _ := store.Create(ctx, CreateInput{UserID: userID, Name: "b", FolderID: &f2})
	_, _ = store.Create(ctx, CreateInput{UserID: userID, Name: "c"})
	_, _ = store.Trash(ctx, userID, b.ID, b.CreatedAt)

	files, err := store.InFolders(ctx, userID, []primitive.ObjectID{f1, f2})
	if err != nil {
		t.Fatalf("InFolders() error = %v", err)
	}
	if len(files) != 2 {
		t.Errorf("InFolders() returned %d files, want 2", len(files))
	}

	none, _ := store.InFolders(ctx, userID, nil)
	if none != nil {
		t.Errorf("InFolders(nil) = %v, want nil", none)
	}
}
