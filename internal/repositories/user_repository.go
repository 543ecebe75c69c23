package repositories

import (
	"time"

	"commsub_backend/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct{}

func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

func (r *UserRepository) Create(db *gorm.DB, user *models.User) error {
	return translate(db.Create(user).Error)
}

func (r *UserRepository) FindByID(db *gorm.DB, id string) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(db *gorm.DB, email string) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "email = ?", email).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) FindByUsername(db *gorm.DB, username string) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "username = ?", username).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindByVerificationToken ищет пользователя по токену верификации email
func (r *UserRepository) FindByVerificationToken(db *gorm.DB, token string) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "verification_token = ?", token).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) Update(db *gorm.DB, user *models.User) error {
	return translate(db.Save(user).Error)
}

// MarkVerified помечает email подтвержденным и гасит токен
func (r *UserRepository) MarkVerified(db *gorm.DB, userID string) error {
	return translate(db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"is_verified":        true,
			"verification_token": "",
			"verification_exp":   nil,
		}).Error)
}

func (r *UserRepository) TouchLastLogin(db *gorm.DB, userID string, at time.Time) error {
	return translate(db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_login_at", at).Error)
}

// --- RefreshToken operations ---

func (r *UserRepository) CreateRefreshToken(db *gorm.DB, token *models.RefreshToken) error {
	return translate(db.Create(token).Error)
}

func (r *UserRepository) FindRefreshToken(db *gorm.DB, token string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	if err := db.First(&rt, "token = ?", token).Error; err != nil {
		return nil, translate(err)
	}
	return &rt, nil
}

func (r *UserRepository) DeleteRefreshToken(db *gorm.DB, token string) error {
	return translate(db.Delete(&models.RefreshToken{}, "token = ?", token).Error)
}

func (r *UserRepository) DeleteUserRefreshTokens(db *gorm.DB, userID string) error {
	return translate(db.Delete(&models.RefreshToken{}, "user_id = ?", userID).Error)
}
