package repositories

import (
	"commsub_backend/internal/models"

	"gorm.io/gorm"
)

type UploadRepository struct{}

func NewUploadRepository() *UploadRepository {
	return &UploadRepository{}
}

func (r *UploadRepository) Create(db *gorm.DB, upload *models.Upload) error {
	return translate(db.Create(upload).Error)
}

func (r *UploadRepository) FindByID(db *gorm.DB, id string) (*models.Upload, error) {
	var upload models.Upload
	if err := db.First(&upload, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &upload, nil
}

func (r *UploadRepository) FindByUser(db *gorm.DB, userID string) ([]models.Upload, error) {
	var uploads []models.Upload
	err := db.Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&uploads).Error
	if err != nil {
		return nil, translate(err)
	}
	return uploads, nil
}
