package models

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// File is the metadata record of an uploaded blob.
type File struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	FolderID    *primitive.ObjectID `bson:"folder_id" json:"folder_id"` // nil = root level
	Name        string              `bson:"name" json:"name"`           // Original filename
	NameCI      string              `bson:"name_ci" json:"-"`           // Case-insensitive for sorting/search
	Size        int64               `bson:"size" json:"size"`
	ContentType string              `bson:"content_type" json:"content_type"`
	ContentID   string              `bson:"content_id" json:"-"` // Blob store reference

	ItemState `bson:",inline"`
}

func (f *File) Ref() ItemRef                { return FileRef(f.ID) }
func (f *File) DisplayName() string         { return f.Name }
func (f *File) Parent() *primitive.ObjectID { return f.FolderID }
func (f *File) State() *ItemState           { return &f.ItemState }

// TypeCategory returns a coarse category for the file's content type.
func (f *File) TypeCategory() string {
	return TypeCategory(f.ContentType)
}

// TypeCategory returns a category string for a content type.
func TypeCategory(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	case strings.HasPrefix(contentType, "audio/"):
		return "audio"
	case contentType == "application/pdf":
		return "pdf"
	case strings.Contains(contentType, "spreadsheet") || strings.Contains(contentType, "excel"):
		return "spreadsheet"
	case strings.Contains(contentType, "presentation") || strings.Contains(contentType, "powerpoint"):
		return "presentation"
	case strings.Contains(contentType, "document") || strings.Contains(contentType, "word"):
		return "document"
	case strings.Contains(contentType, "zip") || strings.Contains(contentType, "compressed") || strings.Contains(contentType, "archive"):
		return "archive"
	default:
		return "file"
	}
}
