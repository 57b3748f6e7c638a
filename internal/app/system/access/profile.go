package access

import (
	"context"
	"errors"

	userstore "github.com/dalemusser/stratadrive/internal/app/store/users"
	"github.com/dalemusser/stratadrive/internal/app/system/authutil"
	"github.com/dalemusser/stratadrive/internal/app/system/htmlsanitize"
	"github.com/dalemusser/stratadrive/internal/domain"
	"github.com/dalemusser/stratadrive/internal/domain/models"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ProfileInput holds editable profile fields. Nil leaves a field unchanged;
// an empty string clears it (except the name, which is required).
type ProfileInput struct {
	FullName   *string `json:"full_name"`
	Gender     *string `json:"gender"`
	Birthday   *string `json:"birthday"`
	University *string `json:"university"`
	PictureURL *string `json:"picture_url"`
}

func (in *ProfileInput) sanitize() {
	for _, f := range []*string{in.FullName, in.Gender, in.Birthday, in.University, in.PictureURL} {
		if f != nil {
			*f = htmlsanitize.PlainText(*f)
		}
	}
}

func (in *ProfileInput) validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.FullName, validation.NilOrNotEmpty, validation.RuneLength(1, MaxNameLength)),
		validation.Field(&in.Gender, validation.RuneLength(0, 50)),
		validation.Field(&in.Birthday, validation.Date("2006-01-02")),
		validation.Field(&in.University, validation.RuneLength(0, MaxNameLength)),
		validation.Field(&in.PictureURL, is.URL),
	)
}

// User returns the account behind id.
func (s *Service) User(ctx context.Context, id Identity) (*models.User, error) {
	if !id.Valid() {
		return nil, domain.AuthenticationFailed()
	}
	u, err := s.users.GetByID(ctx, id.UserID())
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFound("user")
	}
	if err != nil {
		return nil, domain.StorageFault("load user", err)
	}
	return u, nil
}

// UpdateProfile applies in to the caller's profile. Markup is stripped from
// every field before validation.
func (s *Service) UpdateProfile(ctx context.Context, id Identity, in ProfileInput) (*models.User, error) {
	if !id.Valid() {
		return nil, domain.AuthenticationFailed()
	}
	in.sanitize()
	if err := in.validate(); err != nil {
		return nil, invalid(err)
	}

	err := s.users.UpdateProfile(ctx, id.UserID(), userstore.ProfileUpdate{
		FullName:   in.FullName,
		Gender:     in.Gender,
		Birthday:   in.Birthday,
		University: in.University,
		PictureURL: in.PictureURL,
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFound("user")
	}
	if err != nil {
		return nil, domain.StorageFault("update profile", err)
	}
	return s.User(ctx, id)
}

// ChangePassword replaces the caller's password. The current password must
// verify (AuthenticationFailed otherwise); the new one must be non-empty and
// fit bcrypt's input limit (InvalidInput otherwise).
func (s *Service) ChangePassword(ctx context.Context, id Identity, current, next string) error {
	u, err := s.User(ctx, id)
	if err != nil {
		return err
	}
	if !authutil.CheckPassword(current, u.PasswordHash) {
		return domain.AuthenticationFailed()
	}
	if err := authutil.ValidatePassword(next); err != nil {
		return domain.InvalidInput(err.Error())
	}

	hash, err := authutil.HashPassword(next)
	if err != nil {
		return domain.StorageFault("hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return domain.StorageFault("update password", err)
	}
	s.logger.Info("password changed", zap.String("user_id", u.ID.Hex()))
	return nil
}
