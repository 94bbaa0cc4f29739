// internal/domain/user/service.go
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/pkg/apperr"
	"github.com/your-org/storefront/internal/pkg/auth"
	"gorm.io/gorm"
)

// Service handles user business logic
type Service struct {
	db              *gorm.DB
	config          *config.Config
	logger          *logrus.Logger
	passwordManager *auth.PasswordManager
	jwtManager      *auth.JWTManager
}

// NewService creates a new user service
func NewService(db *gorm.DB, cfg *config.Config, logger *logrus.Logger) *Service {
	return &Service{
		db:              db,
		config:          cfg,
		logger:          logger,
		passwordManager: auth.NewPasswordManager(cfg),
		jwtManager:      auth.NewJWTManager(cfg),
	}
}

// JWT exposes the token manager used by the auth middleware
func (s *Service) JWT() *auth.JWTManager {
	return s.jwtManager
}

// RegisterRequest represents user registration data
type RegisterRequest struct {
	Username        string `json:"username" binding:"required,min=3,max=150"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	FirstName       string `json:"first_name" binding:"max=100"`
	LastName        string `json:"last_name" binding:"max=100"`
	Phone           string `json:"phone" binding:"max=20"`
}

// LoginRequest represents user login data. Login is a username or an email.
type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest represents profile changes. Empty phone clears it.
type UpdateProfileRequest struct {
	FirstName   *string `json:"first_name" binding:"omitempty,max=100"`
	LastName    *string `json:"last_name" binding:"omitempty,max=100"`
	Phone       *string `json:"phone" binding:"omitempty,max=20"`
	Address     *string `json:"address" binding:"omitempty,max=1000"`
	DateOfBirth *string `json:"date_of_birth"` // YYYY-MM-DD, empty clears
	Avatar      *string `json:"avatar" binding:"omitempty,max=500"`
}

// ChangePasswordRequest represents a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Register creates a user together with an empty cart
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	if req.Password != req.ConfirmPassword {
		return nil, apperr.Validation("passwords do not match")
	}

	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" || email == "" {
		return nil, apperr.Validation("username and email are required")
	}

	hashedPassword, err := s.passwordManager.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		Username:  username,
		Email:     email,
		Password:  hashedPassword,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Phone:     normalizePhone(req.Phone),
		IsActive:  true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureFree(tx, "username", username, 0); err != nil {
			return err
		}
		if err := ensureFree(tx, "email", email, 0); err != nil {
			return err
		}
		if user.Phone != nil {
			if err := ensureFree(tx, "phone", *user.Phone, 0); err != nil {
				return err
			}
		}

		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		if _, err := cart.GetOrCreate(tx, user.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("user registered")

	return s.issueTokens(ctx, &user)
}

// Login authenticates a user by username or email
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	login := strings.TrimSpace(req.Login)

	var user User
	result := s.db.WithContext(ctx).
		Where("(username = ? OR email = ?) AND is_active = ?", login, strings.ToLower(login), true).
		First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthorized("invalid credentials")
		}
		return nil, fmt.Errorf("failed to find user: %w", result.Error)
	}

	if err := s.passwordManager.VerifyPassword(req.Password, user.Password); err != nil {
		return nil, apperr.Unauthorized("invalid credentials")
	}

	return s.issueTokens(ctx, &user)
}

// RefreshToken generates new tokens using refresh token
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperr.Unauthorized("invalid refresh token")
	}

	var user User
	result := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", claims.UserID, true).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthorized("user not found or inactive")
		}
		return nil, fmt.Errorf("failed to find user: %w", result.Error)
	}

	newAccessToken, err := s.jwtManager.GenerateAccessToken(user.ID, user.Username, user.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	newRefreshToken := refreshToken
	if s.config.JWT.RefreshTokenRotation {
		newRefreshToken, err = s.jwtManager.GenerateRefreshToken(user.ID, user.Username)
		if err != nil {
			return nil, fmt.Errorf("failed to generate refresh token: %w", err)
		}
	}

	return &AuthResponse{
		User:         &user,
		AccessToken:  newAccessToken,
		RefreshToken: newRefreshToken,
		ExpiresIn:    int64(s.jwtManager.AccessTTL().Seconds()),
	}, nil
}

// GetProfile gets user profile by ID
func (s *Service) GetProfile(ctx context.Context, userID uint) (*User, error) {
	var user User
	result := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", userID, true).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("failed to retrieve user: %w", result.Error)
	}
	return &user, nil
}

// UpdateProfile updates the editable profile fields
func (s *Service) UpdateProfile(ctx context.Context, userID uint, req *UpdateProfileRequest) (*User, error) {
	if _, err := s.GetProfile(ctx, userID); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*req.LastName)
	}
	if req.Address != nil {
		updates["address"] = strings.TrimSpace(*req.Address)
	}
	if req.Avatar != nil {
		updates["avatar"] = strings.TrimSpace(*req.Avatar)
	}
	if req.DateOfBirth != nil {
		if strings.TrimSpace(*req.DateOfBirth) == "" {
			updates["date_of_birth"] = nil
		} else {
			dob, err := time.Parse("2006-01-02", strings.TrimSpace(*req.DateOfBirth))
			if err != nil {
				return nil, apperr.Validation("date_of_birth must be YYYY-MM-DD")
			}
			if dob.After(time.Now()) {
				return nil, apperr.Validation("date_of_birth cannot be in the future")
			}
			updates["date_of_birth"] = dob
		}
	}

	db := s.db.WithContext(ctx)
	if req.Phone != nil {
		phone := normalizePhone(*req.Phone)
		if phone != nil {
			if err := ensureFree(db, "phone", *phone, userID); err != nil {
				return nil, err
			}
			updates["phone"] = *phone
		} else {
			updates["phone"] = nil
		}
	}

	if len(updates) > 0 {
		if err := db.Model(&User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update profile: %w", err)
		}
	}

	return s.GetProfile(ctx, userID)
}

// ChangePassword changes user password after verifying current password
func (s *Service) ChangePassword(ctx context.Context, userID uint, req *ChangePasswordRequest) error {
	var user User
	result := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", userID, true).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return apperr.NotFound("user")
		}
		return fmt.Errorf("failed to retrieve user: %w", result.Error)
	}

	if err := s.passwordManager.VerifyPassword(req.CurrentPassword, user.Password); err != nil {
		return apperr.Validation("current password is incorrect")
	}

	hashedPassword, err := s.passwordManager.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Update("password", hashedPassword).Error; err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.logger.WithField("user_id", userID).Info("password changed")
	return nil
}

// SetActive activates or deactivates a user account
func (s *Service) SetActive(ctx context.Context, userID uint, active bool) error {
	result := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to update user status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

func (s *Service) issueTokens(ctx context.Context, user *User) (*AuthResponse, error) {
	accessToken, err := s.jwtManager.GenerateAccessToken(user.ID, user.Username, user.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := time.Now().UTC()
	user.LastLoginAt = &now
	if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", user.ID).UpdateColumn("last_login_at", now).Error; err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("failed to record last login")
	}

	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtManager.AccessTTL().Seconds()),
	}, nil
}

func ensureFree(db *gorm.DB, column, value string, excludeID uint) error {
	var count int64
	query := db.Unscoped().Model(&User{}).Where(column+" = ?", value)
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check %s: %w", column, err)
	}
	if count > 0 {
		return apperr.Conflict(fmt.Sprintf("user with this %s already exists", column))
	}
	return nil
}

func normalizePhone(phone string) *string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil
	}
	return &phone
}
