package auth

import (
	"testing"
	"time"

	apperrors "github.com/aihub/pdfchat/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, secret string, expiresIn time.Duration) *JWTService {
	t.Helper()
	service, err := NewJWTService(secret, "pdfchat", expiresIn)
	require.NoError(t, err)
	return service
}

func TestNewJWTService_EmptySecret(t *testing.T) {
	_, err := NewJWTService("", "pdfchat", time.Hour)
	assert.Error(t, err)
}

func TestJWTService_RoundTrip(t *testing.T) {
	service := newTestService(t, "test-secret-key", time.Hour)

	token, err := service.GenerateToken("user-1", "user@example.com")
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.OwnerID())
	assert.Equal(t, "user@example.com", claims.Email)
}

func TestJWTService_ValidateToken_Expired(t *testing.T) {
	service := newTestService(t, "test-secret-key", -time.Hour)

	token, err := service.GenerateToken("user-1", "")
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeAuthorization, apperrors.CodeOf(err))
	assert.Contains(t, err.Error(), "expired")
}

func TestJWTService_ValidateToken_WrongSecret(t *testing.T) {
	service := newTestService(t, "test-secret-key", time.Hour)
	wrongService := newTestService(t, "wrong-secret-key", time.Hour)

	token, err := wrongService.GenerateToken("user-1", "")
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.Equal(t, apperrors.ErrCodeAuthorization, apperrors.CodeOf(err))
}

func TestJWTService_Authorize(t *testing.T) {
	service := newTestService(t, "test-secret-key", time.Hour)
	token, err := service.GenerateToken("user-1", "")
	require.NoError(t, err)

	ownerID, err := service.Authorize("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", ownerID)

	_, err = service.Authorize(token)
	assert.Equal(t, apperrors.ErrCodeAuthorization, apperrors.CodeOf(err))
}

func TestExtractTokenFromHeader(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{
			name:   "valid token",
			header: "Bearer valid-token",
			want:   "valid-token",
		},
		{
			name:    "empty header",
			header:  "",
			wantErr: true,
		},
		{
			name:    "missing bearer prefix",
			header:  "valid-token",
			wantErr: true,
		},
		{
			name:    "empty token",
			header:  "Bearer ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := ExtractTokenFromHeader(tt.header)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, token)
			}
		})
	}
}
