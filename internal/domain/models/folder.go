package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Folder groups files and other folders of a single owner.
type Folder struct {
	ID       primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name     string              `bson:"name" json:"name"`
	NameCI   string              `bson:"name_ci" json:"-"`        // Case-insensitive for sorting/search
	ParentID *primitive.ObjectID `bson:"parent_id" json:"parent_id"` // nil = root folder

	ItemState `bson:",inline"`
}

func (f *Folder) Ref() ItemRef                { return FolderRef(f.ID) }
func (f *Folder) DisplayName() string         { return f.Name }
func (f *Folder) Parent() *primitive.ObjectID { return f.ParentID }
func (f *Folder) State() *ItemState           { return &f.ItemState }
