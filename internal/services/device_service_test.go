package services

import (
	"strings"
	"testing"
	"time"

	"commsub_backend/internal/dto"
	"commsub_backend/pkg/apperrors"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupOTPCreatesDevice(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice")
	imei := testIMEI(1)

	resp, err := env.devices.SetupOTP(env.db, user.ID, &dto.SetupOTPRequest{
		IMEI:       imei,
		DeviceName: "field unit",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Secret)
	assert.True(t, strings.HasPrefix(resp.QRCode, "data:image/png;base64,"))
	assert.Contains(t, resp.URI, "otpauth://totp/")
	assert.Contains(t, resp.URI, "commsub-test")

	device, err := env.deviceRepo.FindByIMEI(env.db, imei)
	require.NoError(t, err)
	assert.True(t, device.OwnedBy(user.ID))
	assert.Equal(t, resp.Secret, device.OTPSecret)
}

func TestSetupOTPRotatesSecret(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice")
	imei := testIMEI(1)

	first, err := env.devices.SetupOTP(env.db, user.ID, &dto.SetupOTPRequest{IMEI: imei})
	require.NoError(t, err)
	second, err := env.devices.SetupOTP(env.db, user.ID, &dto.SetupOTPRequest{IMEI: imei})
	require.NoError(t, err)

	require.NotEqual(t, first.Secret, second.Secret)

	// Коды старого секрета больше не принимаются
	device, err := env.deviceRepo.FindByIMEI(env.db, imei)
	require.NoError(t, err)

	oldCode, err := totp.GenerateCode(first.Secret, time.Now())
	require.NoError(t, err)
	assert.False(t, env.devices.VerifyOTP(device, oldCode))

	newCode, err := totp.GenerateCode(second.Secret, time.Now())
	require.NoError(t, err)
	assert.True(t, env.devices.VerifyOTP(device, newCode))
}

func TestSetupOTPForeignDevice(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	imei := testIMEI(1)

	_, err := env.devices.SetupOTP(env.db, alice.ID, &dto.SetupOTPRequest{IMEI: imei})
	require.NoError(t, err)

	_, err = env.devices.SetupOTP(env.db, bob.ID, &dto.SetupOTPRequest{IMEI: imei})
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeDeviceOwnershipConflict, appErr.Code)
}

func TestVerifyOTPWindow(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice")
	imei := testIMEI(1)

	resp, err := env.devices.SetupOTP(env.db, user.ID, &dto.SetupOTPRequest{IMEI: imei})
	require.NoError(t, err)
	device, err := env.deviceRepo.FindByIMEI(env.db, imei)
	require.NoError(t, err)

	now := time.Now()

	// Код с дрейфом до двух шагов в обе стороны принимается
	for _, drift := range []time.Duration{-60 * time.Second, 0, 60 * time.Second} {
		code, err := totp.GenerateCode(resp.Secret, now.Add(drift))
		require.NoError(t, err)
		assert.True(t, env.devices.VerifyOTP(device, code), "drift %v", drift)
	}

	// Код далеко за пределами окна отклоняется
	stale, err := totp.GenerateCode(resp.Secret, now.Add(-10*30*time.Second))
	require.NoError(t, err)
	assert.False(t, env.devices.VerifyOTP(device, stale))
}

func TestCheckOnboardedUnknownDevice(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice")

	onboarded, err := env.devices.CheckOnboarded(env.db, user.ID, testIMEI(9))
	require.NoError(t, err)
	assert.False(t, onboarded)
}
