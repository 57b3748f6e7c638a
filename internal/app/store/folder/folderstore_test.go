package folder

import (
	"testing"

	"github.com/dalemusser/stratadrive/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	folder, err := store.Create(ctx, CreateInput{UserID: userID, Name: "Taxes"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if folder.ID.IsZero() {
		t.Error("ID should not be zero")
	}
	if folder.NameCI != "taxes" {
		t.Errorf("NameCI = %q, want %q", folder.NameCI, "taxes")
	}
	if folder.ParentID != nil {
		t.Error("ParentID should be nil for root folder")
	}
	if folder.Deleted || folder.Starred {
		t.Error("new folder should be active and unstarred")
	}
	if !folder.CreatedAt.Equal(folder.UpdatedAt) {
		t.Error("CreatedAt and UpdatedAt should match on create")
	}

	got, err := store.Get(ctx, userID, folder.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.CreatedAt.Equal(folder.CreatedAt) {
		t.Errorf("stored CreatedAt = %v, want %v", got.CreatedAt, folder.CreatedAt)
	}
}

func TestStore_ListActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	other := primitive.NewObjectID()

	parent, _ := store.Create(ctx, CreateInput{UserID: userID, Name: "Parent"})
	_, _ = store.Create(ctx, CreateInput{UserID: userID, Name: "beta", ParentID: &parent.ID})
	_, _ = store.Create(ctx, CreateInput{UserID: userID, Name: "Alpha", ParentID: &parent.ID})
	gone, _ := store.Create(ctx, CreateInput{UserID: userID, Name: "Gone", ParentID: &parent.ID})
	_, _ = store.Create(ctx, CreateInput{UserID: other, Name: "Foreign", ParentID: &parent.ID})
	_, _ = store.Trash(ctx, userID, gone.ID, gone.CreatedAt)

	folders, err := store.ListActive(ctx, userID, &parent.ID, ListOptions{})
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(folders) != 2 {
		t.Fatalf("ListActive() returned %d folders, want 2", len(folders))
	}
	if folders[0].Name != "Alpha" || folders[1].Name != "beta" {
		t.Errorf("order = [%s %s], want [Alpha beta]", folders[0].Name, folders[1].Name)
	}

	roots, _ := store.ListActive(ctx, userID, nil, ListOptions{})
	if len(roots) != 1 || roots[0].ID != parent.ID {
		t.Errorf("root listing = %v, want only Parent", roots)
	}

	found, _ := store.ListActive(ctx, userID, nil, ListOptions{Search: "alp", AnyParent: true})
	if len(found) != 1 || found[0].Name != "Alpha" {
		t.Errorf("search = %v, want only Alpha", found)
	}
}

func TestStore_ListStarredAndTrash(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	a, _ := store.Create(ctx, CreateInput{UserID: userID, Name: "A"})
	b, _ := store.Create(ctx, CreateInput{UserID: userID, Name: "B"})
	c, _ := store.Create(ctx, CreateInput{UserID: userID, Name: "C", ParentID: &b.ID})

	_ = store.SetStarred(ctx, userID, a.ID, true)
	_ = store.SetStarred(ctx, userID, b.ID, true)
	_, _ = store.Trash(ctx, userID, b.ID, b.CreatedAt)
	_, _ = store.TrashWith(ctx, userID, []primitive.ObjectID{c.ID}, b.ID, b.CreatedAt)

	starred, _ := store.ListStarred(ctx, userID)
	if len(starred) != 1 || starred[0].ID != a.ID {
		t.Errorf("ListStarred() = %v, want only A", starred)
	}

	trash, _ := store.ListTrashRoots(ctx, userID)
	if len(trash) != 1 || trash[0].ID != b.ID {
		t.Errorf("ListTrashRoots() = %v, want only B", trash)
	}
}

func TestStore_DescendantsAndAncestors(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	root, _ := store.Create(ctx, CreateInput{UserID: userID, Name: "Root"})
	mid, _ := store.Create(ctx, CreateInput{UserID: userID, Name: "Mid", ParentID: &root.ID})
	leaf, _ := store.Create(ctx, CreateInput{UserID: userID, Name: "Leaf", ParentID: &mid.ID})
	trashed, _ := store.Create(ctx, CreateInput{UserID: userID, Name: "Trashed", ParentID: &root.ID})
	_, _ = store.Trash(ctx, userID, trashed.ID, trashed.CreatedAt)

	all, err := store.Descendants(ctx, userID, root.ID, nil)
	if err != nil {
		t.Fatalf("Descendants() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Descendants() = %d ids, want 3", len(all))
	}

	active, _ := store.Descendants(ctx, userID, root.ID, bson.M{"deleted": false})
	if len(active) != 2 {
		t.Errorf("active Descendants() = %d ids, want 2", len(active))
	}

	ancestors, err := store.GetAncestors(ctx, userID, leaf.ID)
	if err != nil {
		t.Fatalf("GetAncestors() error = %v", err)
	}
	if len(ancestors) != 2 || ancestors[0].ID != root.ID || ancestors[1].ID != mid.ID {
		t.Errorf("GetAncestors() = %v, want [Root Mid]", ancestors)
	}

	within, _ := store.IsWithin(ctx, userID, leaf.ID, root.ID)
	if !within {
		t.Error("Leaf should be within Root")
	}
	within, _ = store.IsWithin(ctx, userID, root.ID, leaf.ID)
	if within {
		t.Error("Root should not be within Leaf")
	}
}
