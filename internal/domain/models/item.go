package models

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind distinguishes the two item collections.
type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindFile || k == KindFolder
}

// Lifecycle is the externally visible state of an item. Purged items no
// longer exist, so only Active and Trashed are ever observed on a record.
type Lifecycle string

const (
	Active  Lifecycle = "active"
	Trashed Lifecycle = "trashed"
)

// ItemState holds the lifecycle fields shared by files and folders. It is
// inlined into both documents.
//
//   - Deleted/DeletedAt: trashed flag and when it was set.
//   - TrashedWith: the folder whose soft delete cascaded onto this item;
//     nil for items trashed on their own (trash roots).
//   - Version: bumped by every update; purge deletes only the version it read.
type ItemState struct {
	UserID      primitive.ObjectID  `bson:"user_id" json:"-"`
	Starred     bool                `bson:"starred" json:"starred"`
	Deleted     bool                `bson:"deleted" json:"deleted"`
	DeletedAt   *time.Time          `bson:"deleted_at" json:"deleted_at,omitempty"`
	TrashedWith *primitive.ObjectID `bson:"trashed_with" json:"-"`
	CreatedAt   time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time           `bson:"updated_at" json:"updated_at"`
	Version     int64               `bson:"version" json:"-"`
}

// Lifecycle returns Active or Trashed.
func (s *ItemState) Lifecycle() Lifecycle {
	if s.Deleted {
		return Trashed
	}
	return Active
}

// IsTrashRoot reports whether the item shows up in the trash listing.
func (s *ItemState) IsTrashRoot() bool {
	return s.Deleted && s.TrashedWith == nil
}

// NewItemState returns the state of a freshly created item.
func NewItemState(userID primitive.ObjectID, now time.Time) ItemState {
	return ItemState{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Item is implemented by *File and *Folder.
type Item interface {
	Ref() ItemRef
	DisplayName() string
	Parent() *primitive.ObjectID
	State() *ItemState
}

// ItemRef addresses a file or folder. Its string form is "<kind>:<hex id>".
type ItemRef struct {
	Kind Kind
	ID   primitive.ObjectID
}

// ErrBadItemRef is returned by ParseItemRef for malformed input.
var ErrBadItemRef = errors.New("malformed item reference")

// FileRef returns the reference of a file id.
func FileRef(id primitive.ObjectID) ItemRef { return ItemRef{Kind: KindFile, ID: id} }

// FolderRef returns the reference of a folder id.
func FolderRef(id primitive.ObjectID) ItemRef { return ItemRef{Kind: KindFolder, ID: id} }

func (r ItemRef) String() string {
	return string(r.Kind) + ":" + r.ID.Hex()
}

// IsZero reports whether r is the zero reference.
func (r ItemRef) IsZero() bool {
	return r.Kind == "" && r.ID.IsZero()
}

// ParseItemRef parses "file:<hex>" or "folder:<hex>".
func ParseItemRef(s string) (ItemRef, error) {
	kind, hex, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return ItemRef{}, ErrBadItemRef
	}
	k := Kind(strings.ToLower(kind))
	if !k.Valid() {
		return ItemRef{}, ErrBadItemRef
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return ItemRef{}, ErrBadItemRef
	}
	return ItemRef{Kind: k, ID: id}, nil
}

func (r ItemRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *ItemRef) UnmarshalText(b []byte) error {
	parsed, err := ParseItemRef(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
