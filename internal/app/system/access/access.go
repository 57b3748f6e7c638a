// Package access is the authentication boundary of the drive. It registers
// and authenticates users and mints the Identity values every lifecycle
// operation requires.
package access

import (
	"context"
	"errors"
	"time"

	userstore "github.com/dalemusser/stratadrive/internal/app/store/users"
	"github.com/dalemusser/stratadrive/internal/app/system/authutil"
	"github.com/dalemusser/stratadrive/internal/app/system/blob"
	"github.com/dalemusser/stratadrive/internal/app/system/normalize"
	"github.com/dalemusser/stratadrive/internal/domain"
	"github.com/dalemusser/stratadrive/internal/domain/models"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// MaxNameLength bounds display names.
const MaxNameLength = 200

// Limiter throttles sign-in attempts per email. *ratelimit.Store implements it.
type Limiter interface {
	CheckAllowed(ctx context.Context, email string) (allowed bool, remaining int, lockedUntil *time.Time)
	RecordFailure(ctx context.Context, email string) (lockedOut bool, lockedUntil *time.Time)
	ClearOnSuccess(ctx context.Context, email string) error
}

// Service implements the access layer.
type Service struct {
	users    *userstore.Store
	limiter  Limiter
	pictures blob.Store
	orphans  OrphanRecorder
	logger   *zap.Logger
}

// New creates a Service. limiter may be nil to disable throttling.
func New(users *userstore.Store, limiter Limiter, logger *zap.Logger) *Service {
	return &Service{users: users, limiter: limiter, logger: logger}
}

// RegisterInput is a sign-up request.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in *RegisterInput) validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, MaxNameLength)),
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Password, validation.Required),
	)
}

// Register creates an account and returns it with its Identity.
// Empty or malformed fields fail with InvalidInput; a taken email fails
// with DuplicateIdentity.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, Identity, error) {
	in.Name = normalize.Name(in.Name)
	in.Email = normalize.Email(in.Email)
	if err := in.validate(); err != nil {
		return nil, Identity{}, invalid(err)
	}
	if err := authutil.ValidatePassword(in.Password); err != nil {
		return nil, Identity{}, domain.InvalidInput(err.Error())
	}

	hash, err := authutil.HashPassword(in.Password)
	if err != nil {
		return nil, Identity{}, domain.StorageFault("hash password", err)
	}

	u, err := s.users.Create(ctx, userstore.CreateInput{
		FullName:     in.Name,
		Email:        in.Email,
		PasswordHash: hash,
	})
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		return nil, Identity{}, domain.DuplicateIdentity("an account with this email already exists")
	}
	if err != nil {
		s.logger.Error("user insert failed", zap.Error(err))
		return nil, Identity{}, domain.StorageFault("create user", err)
	}

	s.logger.Info("user registered", zap.String("user_id", u.ID.Hex()))
	return u, identityOf(u), nil
}

// Authenticate verifies an email and password. Every failure is the same
// AuthenticationFailed error; unknown emails still pay for a bcrypt compare.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, Identity, error) {
	email = normalize.Email(email)
	if email == "" || password == "" {
		authutil.DummyCheck(password)
		return nil, Identity{}, domain.AuthenticationFailed()
	}

	if s.limiter != nil {
		if allowed, _, until := s.limiter.CheckAllowed(ctx, email); !allowed {
			authutil.DummyCheck(password)
			fields := []zap.Field{zap.String("email", email)}
			if until != nil {
				fields = append(fields, zap.Time("locked_until", *until))
			}
			s.logger.Warn("sign-in blocked by lockout", fields...)
			return nil, Identity{}, domain.AuthenticationFailed()
		}
	}

	u, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		authutil.DummyCheck(password)
		return nil, Identity{}, s.failed(ctx, email)
	case err != nil:
		s.logger.Error("user lookup failed", zap.Error(err))
		return nil, Identity{}, domain.StorageFault("load user", err)
	}

	if !authutil.CheckPassword(password, u.PasswordHash) {
		return nil, Identity{}, s.failed(ctx, email)
	}

	if s.limiter != nil {
		if err := s.limiter.ClearOnSuccess(ctx, email); err != nil {
			s.logger.Warn("clear sign-in counter failed", zap.Error(err))
		}
	}
	return u, identityOf(u), nil
}

func (s *Service) failed(ctx context.Context, email string) error {
	if s.limiter != nil {
		if locked, until := s.limiter.RecordFailure(ctx, email); locked && until != nil {
			s.logger.Warn("sign-in locked out",
				zap.String("email", email),
				zap.Time("locked_until", *until))
		}
	}
	return domain.AuthenticationFailed()
}

// Bind re-loads a user by id and mints its Identity. The session middleware
// calls it on every request, so a deleted account loses access at once.
func (s *Service) Bind(ctx context.Context, userID primitive.ObjectID) (Identity, *models.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Identity{}, nil, domain.AuthenticationFailed()
	}
	if err != nil {
		return Identity{}, nil, domain.StorageFault("load user", err)
	}
	return identityOf(u), u, nil
}

func identityOf(u *models.User) Identity {
	return Identity{userID: u.ID, email: u.Email}
}

// invalid turns ozzo validation errors into InvalidInput. Anything else is
// an internal rule failure.
func invalid(err error) error {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return domain.InvalidInput(verrs.Error())
	}
	var ierr validation.InternalError
	if errors.As(err, &ierr) {
		return domain.StorageFault("validate input", err)
	}
	return domain.InvalidInput(err.Error())
}
