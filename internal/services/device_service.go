package services

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"time"

	"commsub_backend/internal/dto"
	"commsub_backend/internal/models"
	"commsub_backend/internal/repositories"
	"commsub_backend/pkg/apperrors"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"
)

// Число 30-секундных шагов, принимаемых по обе стороны от текущего.
// Часы устройств в поле уходят, поэтому окно шире стандартного.
const otpSkewSteps = 2

// DeviceService управляет привязкой устройств и их OTP-секретами
type DeviceService struct {
	deviceRepo *repositories.DeviceRepository
	issuer     string
}

func NewDeviceService(deviceRepo *repositories.DeviceRepository, issuer string) *DeviceService {
	if issuer == "" {
		issuer = "commsub"
	}
	return &DeviceService{deviceRepo: deviceRepo, issuer: issuer}
}

// SetupOTP выпускает TOTP-секрет устройства и QR для регистрации
// в аутентификаторе. Повторный вызов ротирует секрет: старые коды
// перестают действовать.
func (s *DeviceService) SetupOTP(db *gorm.DB, userID string, req *dto.SetupOTPRequest) (*dto.SetupOTPResponse, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: req.IMEI,
	})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		device, err := s.deviceRepo.FindByIMEI(tx, req.IMEI)
		if err == repositories.ErrNotFound {
			device = &models.Device{
				UserID:     &userID,
				IMEI:       req.IMEI,
				DeviceName: req.DeviceName,
				OTPSecret:  key.Secret(),
			}
			return s.wrapDB(s.deviceRepo.Create(tx, device))
		}
		if err != nil {
			return apperrors.UnavailableError(err)
		}
		if device.UserID != nil && !device.OwnedBy(userID) {
			return apperrors.ErrDeviceOwnershipConflict
		}

		device.UserID = &userID
		device.OTPSecret = key.Secret()
		// Ротация секрета сбрасывает онбординг: устройство должно
		// заново подтвердить владение новым секретом
		device.Onboarded = false
		if req.DeviceName != "" {
			device.DeviceName = req.DeviceName
		}
		return s.wrapDB(s.deviceRepo.Update(tx, device))
	})
	if err != nil {
		return nil, err
	}

	qr, err := renderQRCode(key)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return &dto.SetupOTPResponse{
		Secret: key.Secret(),
		QRCode: qr,
		URI:    key.URL(),
	}, nil
}

// VerifyOTP проверяет одноразовый код с окном +-otpSkewSteps шагов
func (s *DeviceService) VerifyOTP(device *models.Device, code string) bool {
	if device.OTPSecret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, device.OTPSecret, time.Now(), totp.ValidateOpts{
		Period: 30,
		Skew:   otpSkewSteps,
		Digits: 6,
	})
	return err == nil && ok
}

// CheckOnboarded сообщает, проходило ли устройство пользователя
// успешную OTP-активацию
func (s *DeviceService) CheckOnboarded(db *gorm.DB, userID, imei string) (bool, error) {
	device, err := s.deviceRepo.FindByUserAndIMEI(db, userID, imei)
	if err == repositories.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, apperrors.UnavailableError(err)
	}
	return device.Onboarded, nil
}

func (s *DeviceService) wrapDB(err error) error {
	if err == nil {
		return nil
	}
	if err == repositories.ErrDuplicate {
		return apperrors.ErrConflict("device", "device already registered")
	}
	return apperrors.UnavailableError(err)
}

// renderQRCode кодирует provisioning-ключ в data URL с PNG
func renderQRCode(key *otp.Key) (string, error) {
	img, err := key.Image(256, 256)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
