package services

import (
	"time"

	"commsub_backend/internal/auth"
	"commsub_backend/internal/config"
	"commsub_backend/internal/dto"
	"commsub_backend/internal/email"
	"commsub_backend/internal/logger"
	"commsub_backend/internal/models"
	"commsub_backend/internal/repositories"
	"commsub_backend/pkg/apperrors"

	"gorm.io/gorm"
)

const verificationTTL = 24 * time.Hour

// AuthService - регистрация, верификация email и сессии.
//
// Регистрация составная: пользователь, устройство, первая заявка
// на подписку и запись журнала создаются одной транзакцией БД.
// Письмо верификации уходит после коммита и не влияет на исход.
type AuthService struct {
	userRepo *repositories.UserRepository
	subs     *SubscriptionService
	emails   email.Provider
}

func NewAuthService(userRepo *repositories.UserRepository, subs *SubscriptionService, emails email.Provider) *AuthService {
	return &AuthService{userRepo: userRepo, subs: subs, emails: emails}
}

// Register создает аккаунт вместе с устройством и pending-заявкой.
// Любой сбой откатывает все четыре сущности разом.
func (s *AuthService) Register(db *gorm.DB, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	if err := auth.ValidatePassword(req.Password); err != nil {
		return nil, apperrors.NewBadRequestError(err.Error())
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	token, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	unlock := s.subs.LockIMEI(req.IMEI)
	defer unlock()

	var user *models.User
	err = db.Transaction(func(tx *gorm.DB) error {
		exp := time.Now().Add(verificationTTL)
		user = &models.User{
			Username:          req.Username,
			Email:             req.Email,
			PasswordHash:      hash,
			Role:              models.UserRoleUser,
			Status:            models.UserStatusActive,
			VerificationToken: token,
			VerificationExp:   &exp,
		}
		if err := s.userRepo.Create(tx, user); err != nil {
			if err == repositories.ErrDuplicate {
				dup := apperrors.ErrAlreadyExists(err)
				dup.Message = "email or username already registered"
				dup.Domain = "user"
				return dup
			}
			return apperrors.UnavailableError(err)
		}

		_, err := s.subs.CreateInTx(tx, user, &dto.CreateSubscriptionRequest{
			IMEI:       req.IMEI,
			DeviceName: req.DeviceName,
			Phone:      req.Phone,
			Plan:       req.Plan,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	// Письмо после коммита; провал только логируется
	if s.emails != nil {
		if err := s.emails.SendVerification(user.Email, user.Username, token); err != nil {
			logger.Warn("verification email failed", "user_id", user.ID, "error", err)
		}
	}

	return &dto.RegisterResponse{
		RequiresVerification: true,
		Email:                user.Email,
		Username:             user.Username,
	}, nil
}

// Login проверяет учетные данные и выпускает пару токенов
func (s *AuthService) Login(db *gorm.DB, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.userRepo.FindByEmail(db, req.Email)
	if err == repositories.ErrNotFound {
		return nil, apperrors.NewUnauthorizedError("invalid email or password")
	}
	if err != nil {
		return nil, apperrors.UnavailableError(err)
	}
	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		return nil, apperrors.NewUnauthorizedError("invalid email or password")
	}
	if !user.IsVerified {
		return nil, apperrors.NewForbiddenError("email address is not verified")
	}
	if user.Status == models.UserStatusSuspended {
		return nil, apperrors.NewForbiddenError("account is suspended")
	}

	access, err := auth.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	refresh, err := s.issueRefreshToken(db, user.ID)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.TouchLastLogin(db, user.ID, time.Now()); err != nil {
		logger.Warn("failed to update last login", "user_id", user.ID, "error", err)
	}

	return &dto.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
	}, nil
}

// VerifyEmail подтверждает адрес по одноразовому токену
func (s *AuthService) VerifyEmail(db *gorm.DB, token string) error {
	user, err := s.userRepo.FindByVerificationToken(db, token)
	if err == repositories.ErrNotFound {
		return apperrors.NewBadRequestError("invalid verification token")
	}
	if err != nil {
		return apperrors.UnavailableError(err)
	}
	if user.VerificationExp != nil && user.VerificationExp.Before(time.Now()) {
		return apperrors.NewBadRequestError("verification token expired")
	}
	if err := s.userRepo.MarkVerified(db, user.ID); err != nil {
		return apperrors.UnavailableError(err)
	}
	return nil
}

// ResendVerification ротирует токен верификации и шлет письмо заново
func (s *AuthService) ResendVerification(db *gorm.DB, emailAddr string) error {
	user, err := s.userRepo.FindByEmail(db, emailAddr)
	if err == repositories.ErrNotFound {
		return apperrors.ErrNotFound(err)
	}
	if err != nil {
		return apperrors.UnavailableError(err)
	}
	if user.IsVerified {
		return apperrors.ErrConflict("user", "email is already verified")
	}

	token, err := auth.GenerateRefreshToken()
	if err != nil {
		return apperrors.InternalError(err)
	}
	exp := time.Now().Add(verificationTTL)
	user.VerificationToken = token
	user.VerificationExp = &exp
	if err := s.userRepo.Update(db, user); err != nil {
		return apperrors.UnavailableError(err)
	}

	if s.emails != nil {
		if err := s.emails.SendVerification(user.Email, user.Username, token); err != nil {
			return apperrors.UnavailableError(err)
		}
	}
	return nil
}

// Refresh обменивает refresh-токен на новую пару. Старый токен гасится.
func (s *AuthService) Refresh(db *gorm.DB, refreshToken string) (*dto.LoginResponse, error) {
	stored, err := s.userRepo.FindRefreshToken(db, refreshToken)
	if err == repositories.ErrNotFound {
		return nil, apperrors.NewUnauthorizedError("invalid refresh token")
	}
	if err != nil {
		return nil, apperrors.UnavailableError(err)
	}
	if stored.ExpiresAt.Before(time.Now()) {
		_ = s.userRepo.DeleteRefreshToken(db, refreshToken)
		return nil, apperrors.NewUnauthorizedError("refresh token expired")
	}

	user, err := s.userRepo.FindByID(db, stored.UserID)
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("invalid refresh token")
	}
	if user.Status == models.UserStatusSuspended {
		return nil, apperrors.NewForbiddenError("account is suspended")
	}

	access, err := auth.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	if err := s.userRepo.DeleteRefreshToken(db, refreshToken); err != nil {
		return nil, apperrors.UnavailableError(err)
	}
	refresh, err := s.issueRefreshToken(db, user.ID)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
	}, nil
}

// Logout гасит refresh-токен сессии
func (s *AuthService) Logout(db *gorm.DB, refreshToken string) error {
	if err := s.userRepo.DeleteRefreshToken(db, refreshToken); err != nil {
		return apperrors.UnavailableError(err)
	}
	return nil
}

// GetUser - профиль для /me
func (s *AuthService) GetUser(db *gorm.DB, userID string) (*models.User, error) {
	user, err := s.userRepo.FindByID(db, userID)
	if err == repositories.ErrNotFound {
		return nil, apperrors.ErrNotFound(err)
	}
	if err != nil {
		return nil, apperrors.UnavailableError(err)
	}
	return user, nil
}

func (s *AuthService) issueRefreshToken(db *gorm.DB, userID string) (string, error) {
	token, err := auth.GenerateRefreshToken()
	if err != nil {
		return "", apperrors.InternalError(err)
	}
	cfg := config.GetConfig()
	rt := &models.RefreshToken{
		UserID:    userID,
		Token:     token,
		ExpiresAt: time.Now().Add(time.Duration(cfg.JWT.RefreshTTL) * time.Hour),
	}
	if err := s.userRepo.CreateRefreshToken(db, rt); err != nil {
		return "", apperrors.UnavailableError(err)
	}
	return token, nil
}
