package services

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"commsub_backend/internal/models"
	"commsub_backend/internal/repositories"
	"commsub_backend/internal/storage"
	"commsub_backend/pkg/apperrors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UploadService принимает изображения карт и привязывает их к заявке
type UploadService struct {
	uploadRepo   *repositories.UploadRepository
	subRepo      *repositories.SubscriptionRepository
	store        storage.Storage
	maxSize      int64
	allowedTypes []string
}

func NewUploadService(
	uploadRepo *repositories.UploadRepository,
	subRepo *repositories.SubscriptionRepository,
	store storage.Storage,
	maxSize int64,
	allowedTypes []string,
) *UploadService {
	return &UploadService{
		uploadRepo:   uploadRepo,
		subRepo:      subRepo,
		store:        store,
		maxSize:      maxSize,
		allowedTypes: allowedTypes,
	}
}

// UploadCard сохраняет файл в хранилище, пишет метаданные и
// дописывает ссылку в cardUploads заявки. Чужая заявка запрещена.
func (s *UploadService) UploadCard(ctx context.Context, db *gorm.DB, userID, subscriptionID string, file *multipart.FileHeader) (*models.Upload, error) {
	if file.Size > s.maxSize {
		return nil, apperrors.NewBadRequestError(
			fmt.Sprintf("file exceeds the %d byte limit", s.maxSize))
	}
	contentType := file.Header.Get("Content-Type")
	if !s.typeAllowed(contentType) {
		return nil, apperrors.NewBadRequestError("unsupported file type: " + contentType)
	}

	sub, err := s.subRepo.FindByID(db, subscriptionID)
	if err == repositories.ErrNotFound {
		return nil, apperrors.ErrNotFound(err)
	}
	if err != nil {
		return nil, apperrors.UnavailableError(err)
	}
	if sub.UserID != userID {
		return nil, apperrors.NewForbiddenError("subscription belongs to another account")
	}

	src, err := file.Open()
	if err != nil {
		return nil, apperrors.NewBadRequestError("cannot read uploaded file")
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(file.Filename))
	path := fmt.Sprintf("cards/%s/%s%s", userID, uuid.NewString(), ext)
	if err := s.store.Save(ctx, path, src, contentType); err != nil {
		return nil, apperrors.UnavailableError(err)
	}

	url, err := s.store.GetURL(ctx, path)
	if err != nil {
		return nil, apperrors.UnavailableError(err)
	}

	upload := &models.Upload{
		UserID:      userID,
		FileName:    filepath.Base(file.Filename),
		Path:        path,
		URL:         url,
		Size:        file.Size,
		ContentType: contentType,
		Usage:       "card",
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := s.uploadRepo.Create(tx, upload); err != nil {
			return apperrors.UnavailableError(err)
		}
		return s.appendCardRef(tx, sub, upload)
	})
	if err != nil {
		// Файл уже в хранилище; запись не удалась - подчищаем
		_ = s.store.Delete(ctx, path)
		return nil, err
	}
	return upload, nil
}

// appendCardRef дописывает ссылку на загрузку в JSON-массив заявки
func (s *UploadService) appendCardRef(tx *gorm.DB, sub *models.Subscription, upload *models.Upload) error {
	var refs []models.CardUploadRef
	if len(sub.CardUploads) > 0 {
		if err := json.Unmarshal(sub.CardUploads, &refs); err != nil {
			return apperrors.InternalError(err)
		}
	}
	refs = append(refs, models.CardUploadRef{UploadID: upload.ID, URL: upload.URL})

	raw, err := json.Marshal(refs)
	if err != nil {
		return apperrors.InternalError(err)
	}
	sub.CardUploads = datatypes.JSON(raw)
	if err := s.subRepo.Update(tx, sub); err != nil {
		return apperrors.UnavailableError(err)
	}
	return nil
}

// ListByUser - загрузки пользователя
func (s *UploadService) ListByUser(db *gorm.DB, userID string) ([]models.Upload, error) {
	uploads, err := s.uploadRepo.FindByUser(db, userID)
	if err != nil {
		return nil, apperrors.UnavailableError(err)
	}
	return uploads, nil
}

func (s *UploadService) typeAllowed(contentType string) bool {
	for _, t := range s.allowedTypes {
		if strings.EqualFold(t, contentType) {
			return true
		}
	}
	return false
}
