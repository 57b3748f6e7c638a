package lifecycle

import (
	"context"

	"github.com/dalemusser/stratadrive/internal/app/store/file"
	"github.com/dalemusser/stratadrive/internal/app/store/folder"
	"github.com/dalemusser/stratadrive/internal/app/system/access"
	"github.com/dalemusser/stratadrive/internal/domain"
	"github.com/dalemusser/stratadrive/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Listing is a query result. Both slices are non-nil.
type Listing struct {
	Folders []models.Folder `json:"folders"`
	Files   []models.File   `json:"files"`
}

// ListOptions narrows and orders ListActive.
type ListOptions struct {
	Search      string // case-insensitive name substring
	ContentType string // files only; "image/" prefix or "~a,b" contains-any
	SortBy      string // name, created_at, updated_at, size, content_type
	SortOrder   int    // 1 asc, -1 desc, 0 default
}

// ListActive lists the owner's active items in a folder (nil for the root).
// A search or type filter without a folder searches the whole drive. A type
// filter excludes folders.
func (e *Engine) ListActive(ctx context.Context, id access.Identity, folderID *primitive.ObjectID, opts ListOptions) (*Listing, error) {
	uid, err := owner(id)
	if err != nil {
		return nil, err
	}
	if folderID != nil {
		if err := e.ownedFolder(ctx, uid, *folderID); err != nil {
			return nil, err
		}
	}
	anywhere := folderID == nil && (opts.Search != "" || opts.ContentType != "")

	out := &Listing{Folders: []models.Folder{}}
	if opts.ContentType == "" {
		folders, err := e.folders.ListActive(ctx, uid, folderID, folder.ListOptions{
			SortBy:    opts.SortBy,
			SortOrder: opts.SortOrder,
			Search:    opts.Search,
			AnyParent: anywhere,
		})
		if err != nil {
			return nil, e.fault("list folders", models.ItemRef{Kind: models.KindFolder}, err)
		}
		out.Folders = folders
	}

	files, err := e.files.ListActive(ctx, uid, folderID, file.ListOptions{
		SortBy:      opts.SortBy,
		SortOrder:   opts.SortOrder,
		ContentType: opts.ContentType,
		Search:      opts.Search,
		AnyParent:   anywhere,
	})
	if err != nil {
		return nil, e.fault("list files", models.ItemRef{Kind: models.KindFile}, err)
	}
	out.Files = files
	return out, nil
}

// ListChildren lists the active items directly inside a folder of the owner.
func (e *Engine) ListChildren(ctx context.Context, id access.Identity, folderID primitive.ObjectID) (*Listing, error) {
	return e.ListActive(ctx, id, &folderID, ListOptions{})
}

// ListStarred lists the owner's starred active items.
func (e *Engine) ListStarred(ctx context.Context, id access.Identity) (*Listing, error) {
	uid, err := owner(id)
	if err != nil {
		return nil, err
	}
	folders, err := e.folders.ListStarred(ctx, uid)
	if err != nil {
		return nil, e.fault("list starred", models.ItemRef{Kind: models.KindFolder}, err)
	}
	files, err := e.files.ListStarred(ctx, uid)
	if err != nil {
		return nil, e.fault("list starred", models.ItemRef{Kind: models.KindFile}, err)
	}
	return &Listing{Folders: folders, Files: files}, nil
}

// ListTrashed lists the owner's trash: items trashed directly, not the
// items that went along with a trashed folder.
func (e *Engine) ListTrashed(ctx context.Context, id access.Identity) (*Listing, error) {
	uid, err := owner(id)
	if err != nil {
		return nil, err
	}
	folders, err := e.folders.ListTrashRoots(ctx, uid)
	if err != nil {
		return nil, e.fault("list trash", models.ItemRef{Kind: models.KindFolder}, err)
	}
	files, err := e.files.ListTrashRoots(ctx, uid)
	if err != nil {
		return nil, e.fault("list trash", models.ItemRef{Kind: models.KindFile}, err)
	}
	return &Listing{Folders: folders, Files: files}, nil
}

// ListRecent lists the owner's most recently changed active files.
func (e *Engine) ListRecent(ctx context.Context, id access.Identity, limit int64) ([]models.File, error) {
	uid, err := owner(id)
	if err != nil {
		return nil, err
	}
	files, err := e.files.ListRecent(ctx, uid, limit)
	if err != nil {
		return nil, e.fault("list recent", models.ItemRef{Kind: models.KindFile}, err)
	}
	return files, nil
}

// Get loads one item of the owner in any state.
func (e *Engine) Get(ctx context.Context, id access.Identity, ref models.ItemRef) (models.Item, error) {
	uid, err := owner(id)
	if err != nil {
		return nil, err
	}
	item, err := e.load(ctx, uid, ref)
	if err != nil {
		return nil, e.fail("get", ref, err)
	}
	return item, nil
}

// Ancestors returns the folders above folderID, root first.
func (e *Engine) Ancestors(ctx context.Context, id access.Identity, folderID primitive.ObjectID) ([]models.Folder, error) {
	uid, err := owner(id)
	if err != nil {
		return nil, err
	}
	ancestors, err := e.folders.GetAncestors(ctx, uid, folderID)
	if err != nil {
		return nil, e.fail("ancestors", models.FolderRef(folderID), err)
	}
	if ancestors == nil {
		ancestors = []models.Folder{}
	}
	return ancestors, nil
}

func (e *Engine) ownedFolder(ctx context.Context, uid, folderID primitive.ObjectID) error {
	ok, err := e.folders.Exists(ctx, uid, folderID)
	if err != nil {
		return e.fault("load folder", models.FolderRef(folderID), err)
	}
	if !ok {
		return domain.NotFound("folder")
	}
	return nil
}
