package service

import (
	"context"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// DefaultAvatarPath is appended to the public base URL for new users.
const DefaultAvatarPath = "/uploads/def_avatar.jpg"

type UserService struct {
	userRepo      repository.UserRepository
	defaultAvatar string
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// UpdateProfileInput carries the fields to change. Empty strings are left alone.
type UpdateProfileInput struct {
	UserID uint
	Name   string
	Email  string
	Avatar string
}

func NewUserService(userRepo repository.UserRepository, publicBaseURL string) *UserService {
	return &UserService{
		userRepo:      userRepo,
		defaultAvatar: strings.TrimRight(publicBaseURL, "/") + DefaultAvatarPath,
	}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)

	if err := validation.ValidateName(name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: string(hash),
		Avatar:   s.defaultAvatar,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks the credentials. Unknown email and wrong password give
// the same error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError("Invalid credentials")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	if name == "" && email == "" {
		return nil, models.NewValidationError("Name or email is required")
	}
	if name != "" {
		if err := validation.ValidateName(name); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}
	if email != "" {
		if err := validation.ValidateEmail(email); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}

	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	// Copy so a cache-shared value is never mutated on failure.
	updated := *user
	if name != "" {
		updated.Name = name
	}
	if email != "" {
		updated.Email = email
	}
	if avatar := strings.TrimSpace(in.Avatar); avatar != "" {
		updated.Avatar = avatar
	}

	if err := s.userRepo.Update(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}
