// internal/app/store/users/userstore.go
package userstore

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - Email: the sign-in identifier; email_ci is its folded form and carries the unique index

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stratadrive/internal/app/system/normalize"
	"github.com/dalemusser/stratadrive/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection holding accounts.
const CollectionName = "users"

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// ErrDuplicateEmail is returned when attempting to create a user with an
// email that already exists.
var ErrDuplicateEmail = errors.New("a user with this email already exists")

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by case/diacritic-insensitive email.
// Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	folded := text.Fold(normalize.Email(email))
	if err := s.c.FindOne(ctx, bson.M{"email_ci": folded}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateInput holds the fields for creating a new user.
type CreateInput struct {
	FullName     string
	Email        string
	PasswordHash string
}

// Create inserts a new user after normalizing fields.
func (s *Store) Create(ctx context.Context, input CreateInput) (*models.User, error) {
	email := normalize.Email(input.Email)
	now := time.Now().UTC().Truncate(time.Millisecond)

	u := models.User{
		ID:           primitive.NewObjectID(),
		FullName:     normalize.Name(input.FullName),
		Email:        email,
		EmailCI:      text.Fold(email),
		PasswordHash: input.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return &u, nil
}

// ProfileUpdate holds the profile fields a user may edit.
// All fields are pointers - nil means "don't update this field".
type ProfileUpdate struct {
	FullName   *string
	Gender     *string
	Birthday   *string
	University *string
	PictureURL *string
}

// UpdateProfile applies a profile update. Returns mongo.ErrNoDocuments if
// the user does not exist.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) error {
	set := bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)}

	if upd.FullName != nil {
		set["full_name"] = normalize.Name(*upd.FullName)
	}
	if upd.Gender != nil {
		set["gender"] = *upd.Gender
	}
	if upd.Birthday != nil {
		set["birthday"] = *upd.Birthday
	}
	if upd.University != nil {
		set["university"] = *upd.University
	}
	if upd.PictureURL != nil {
		set["picture_url"] = *upd.PictureURL
	}

	return s.updateOne(ctx, id, set)
}

// UpdatePassword replaces a user's password hash.
func (s *Store) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	return s.updateOne(ctx, id, bson.M{
		"password_hash": passwordHash,
		"updated_at":    time.Now().UTC().Truncate(time.Millisecond),
	})
}

// SetPicture points the user at an uploaded picture and returns the content
// id it replaced ("" if none). Returns mongo.ErrNoDocuments if the user does
// not exist.
func (s *Store) SetPicture(ctx context.Context, id primitive.ObjectID, contentID, contentType string) (string, error) {
	return s.swapPicture(ctx, id, bson.M{"$set": bson.M{
		"picture_id":   contentID,
		"picture_type": contentType,
		"updated_at":   time.Now().UTC().Truncate(time.Millisecond),
	}})
}

// ClearPicture removes the picture reference and returns the content id it
// held ("" if none).
func (s *Store) ClearPicture(ctx context.Context, id primitive.ObjectID) (string, error) {
	return s.swapPicture(ctx, id, bson.M{
		"$unset": bson.M{"picture_id": "", "picture_type": ""},
		"$set":   bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)},
	})
}

func (s *Store) swapPicture(ctx context.Context, id primitive.ObjectID, update bson.M) (string, error) {
	var before struct {
		PictureID string `bson:"picture_id"`
	}
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().
			SetReturnDocument(options.Before).
			SetProjection(bson.M{"picture_id": 1}),
	).Decode(&before)
	if err != nil {
		return "", err
	}
	return before.PictureID, nil
}

func (s *Store) updateOne(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ExistsByEmail checks if a user with the given email exists.
func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	count, err := s.c.CountDocuments(ctx, bson.M{
		"email_ci": text.Fold(normalize.Email(email)),
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
