package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/stratadrive/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestListActive_Filters(t *testing.T) {
	f := newFixture(t)
	docs := f.folder("Documents", nil)
	f.folder("Report archive", nil)
	f.upload("report.pdf", &docs.ID, "r")
	f.upload("Holiday.PNG", nil, "h")
	f.upload("notes.txt", nil, "n")
	gone := f.upload("old-report.txt", nil, "o")
	_ = f.e.SoftDelete(f.ctx, f.ana, gone.Ref())

	tests := []struct {
		name        string
		folder      *primitive.ObjectID
		opts        ListOptions
		wantFolders int
		wantFiles   int
	}{
		{"root", nil, ListOptions{}, 2, 2},
		{"inside folder", &docs.ID, ListOptions{}, 0, 1},
		{"search anywhere", nil, ListOptions{Search: "REPORT"}, 1, 1},
		{"search in folder", &docs.ID, ListOptions{Search: "report"}, 0, 1},
		{"type prefix", nil, ListOptions{ContentType: "image/"}, 0, 1},
		{"type any of", nil, ListOptions{ContentType: "~pdf,text"}, 0, 2},
		{"no match", nil, ListOptions{Search: "zzz"}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.e.ListActive(f.ctx, f.ana, tt.folder, tt.opts)
			if err != nil {
				t.Fatalf("ListActive() error = %v", err)
			}
			if got.Folders == nil || got.Files == nil {
				t.Fatal("ListActive() returned nil slices")
			}
			if len(got.Folders) != tt.wantFolders {
				t.Errorf("folders = %d, want %d", len(got.Folders), tt.wantFolders)
			}
			if len(got.Files) != tt.wantFiles {
				t.Errorf("files = %d, want %d", len(got.Files), tt.wantFiles)
			}
		})
	}
}

func TestListActive_Sort(t *testing.T) {
	f := newFixture(t)
	f.upload("b.txt", nil, "bb")
	f.upload("a.txt", nil, "aaa")
	f.upload("c.txt", nil, "c")

	got, err := f.e.ListActive(f.ctx, f.ana, nil, ListOptions{})
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	names := []string{got.Files[0].Name, got.Files[1].Name, got.Files[2].Name}
	if names[0] != "a.txt" || names[1] != "b.txt" || names[2] != "c.txt" {
		t.Errorf("default order = %v, want by name", names)
	}

	got, _ = f.e.ListActive(f.ctx, f.ana, nil, ListOptions{SortBy: "size", SortOrder: -1})
	if got.Files[0].Name != "a.txt" || got.Files[2].Name != "c.txt" {
		t.Errorf("size desc order = %s,%s,%s", got.Files[0].Name, got.Files[1].Name, got.Files[2].Name)
	}
}

func TestListRecent(t *testing.T) {
	f := newFixture(t)
	first := f.upload("first.txt", nil, "1")
	f.upload("second.txt", nil, "2")
	trashed := f.upload("third.txt", nil, "3")
	_ = f.e.SoftDelete(f.ctx, f.ana, trashed.Ref())
	time.Sleep(5 * time.Millisecond)
	_ = f.e.Rename(f.ctx, f.ana, first.Ref(), "first-renamed.txt")

	got, err := f.e.ListRecent(f.ctx, f.ana, 10)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListRecent() = %d files, want 2 active", len(got))
	}
	if got[0].ID != first.ID {
		t.Errorf("most recent = %s, want the renamed file", got[0].Name)
	}

	got, _ = f.e.ListRecent(f.ctx, f.ana, 1)
	if len(got) != 1 {
		t.Errorf("ListRecent(limit 1) = %d files", len(got))
	}
}

func TestAncestors(t *testing.T) {
	f := newFixture(t)
	a := f.folder("A", nil)
	b := f.folder("B", &a.ID)
	c := f.folder("C", &b.ID)

	got, err := f.e.Ancestors(f.ctx, f.ana, c.ID)
	if err != nil {
		t.Fatalf("Ancestors() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != a.ID || got[1].ID != b.ID {
		t.Errorf("Ancestors(C) = %+v, want [A B]", got)
	}

	got, err = f.e.Ancestors(f.ctx, f.ana, a.ID)
	if err != nil || got == nil || len(got) != 0 {
		t.Errorf("Ancestors(root folder) = %v, %v, want empty", got, err)
	}

	if _, err := f.e.Ancestors(f.ctx, f.bob, c.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Ancestors(ana's folder) as bob error = %v, want NotFound", err)
	}
}
