package repository

import (
	"context"
	"errors"
	"strings"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/observability"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

type userRepository struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewUserRepository returns a UserRepository; rdb may be nil.
func NewUserRepository(db *gorm.DB, rdb *redis.Client) UserRepository {
	return &userRepository{db: db, rdb: rdb}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	defer observability.TrackQuery("insert", "users")()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if IsUniqueViolation(err) {
			return models.NewConflictError("Email is already registered")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, r.rdb, cache.UserKey(id), &user, cache.UserTTL, func() error {
		return r.db.WithContext(ctx).First(&user, id).Error
	})
	if err != nil {
		return nil, translate(err, "User", id)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	email = strings.ToLower(strings.TrimSpace(email))
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", email)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// Update saves name, email and avatar. Existing author snapshots are left untouched.
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	defer observability.TrackQuery("update", "users")()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"name":   user.Name,
			"email":  user.Email,
			"avatar": user.Avatar,
		})
	if res.Error != nil {
		if IsUniqueViolation(res.Error) {
			return models.NewConflictError("Email is already registered")
		}
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", user.ID)
	}
	cache.Invalidate(ctx, r.rdb, cache.UserKey(user.ID))
	return nil
}
