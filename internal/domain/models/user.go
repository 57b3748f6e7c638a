// internal/domain/models/user.go
package models

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - Email: what the user types to sign in; unique across accounts

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an account owner. Every file and folder belongs to exactly one user.
type User struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName string             `bson:"full_name" json:"full_name"`

	// Authentication fields
	Email        string `bson:"email" json:"email"`            // stored lowercase
	EmailCI      string `bson:"email_ci" json:"-"`             // folded, unique index
	PasswordHash string `bson:"password_hash" json:"-"`        // bcrypt hash (never in JSON)

	// Profile fields
	Gender     string `bson:"gender,omitempty" json:"gender,omitempty"`
	Birthday   string `bson:"birthday,omitempty" json:"birthday,omitempty"` // YYYY-MM-DD
	University string `bson:"university,omitempty" json:"university,omitempty"`
	PictureURL string `bson:"picture_url,omitempty" json:"picture_url,omitempty"`

	// Uploaded picture, served from the account's picture endpoint. The id
	// changes on every upload, so clients can use it to bust caches.
	PictureID   string `bson:"picture_id,omitempty" json:"picture_id,omitempty"` // blob content id
	PictureType string `bson:"picture_type,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
