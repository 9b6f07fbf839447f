package tokens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderatlas/tourism_admin/internal/models"
)

func newTestService() *Service {
	return NewService([]byte("test-access-secret"), []byte("test-refresh-secret"))
}

func TestIssuePair_SetsExpectedClaims(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	pair, err := svc.IssuePair(42, models.RoleEditor)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	access, err := svc.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "42", access.Subject)
	assert.Equal(t, models.RoleEditor, access.Role)
	assert.Equal(t, TypeAccess, access.TokenType)
	require.NotNil(t, access.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(DefaultAccessTTL), access.ExpiresAt.Time, 5*time.Second)

	refresh, err := svc.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "42", refresh.Subject)
	assert.Equal(t, TypeRefresh, refresh.TokenType)
	assert.NotEmpty(t, refresh.ID)
	assert.WithinDuration(t, time.Now().Add(DefaultRefreshTTL), refresh.ExpiresAt.Time, 5*time.Second)
}

func TestParseAccess_Expired(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	svc.AccessTTL = -time.Minute

	token, _, err := svc.IssueAccess(7, models.RoleReviewer)
	require.NoError(t, err)

	_, err = svc.ParseAccess(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseAccess_Invalid(t *testing.T) {
	t.Parallel()

	svc := newTestService()

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name:  "garbage",
			token: func(t *testing.T) string { return "not-a-jwt" },
		},
		{
			name: "wrong signing key",
			token: func(t *testing.T) string {
				other := NewService([]byte("other-secret"), []byte("other-refresh"))
				tok, _, err := other.IssueAccess(7, models.RoleEditor)
				require.NoError(t, err)
				return tok
			},
		},
		{
			name: "refresh token used as bearer",
			token: func(t *testing.T) string {
				tok, _, err := svc.IssueRefresh(7)
				require.NoError(t, err)
				return tok
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := svc.ParseAccess(tt.token(t))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTokenInvalid)
			assert.NotErrorIs(t, err, ErrTokenExpired)
		})
	}
}

func TestParseRefresh_RejectsAccessToken(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	access, _, err := svc.IssueAccess(7, models.RoleEditor)
	require.NoError(t, err)

	_, err = svc.ParseRefresh(access)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseRefresh_TypeCheckWithSharedSecret(t *testing.T) {
	t.Parallel()

	// Same secret for both kinds: the type claim alone must still
	// keep an access token out of the refresh path.
	svc := NewService([]byte("shared"), []byte("shared"))
	access, _, err := svc.IssueAccess(7, models.RoleEditor)
	require.NoError(t, err)

	_, err = svc.ParseRefresh(access)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	refresh, _, err := svc.IssueRefresh(7)
	require.NoError(t, err)
	_, err = svc.ParseAccess(refresh)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseSubject(t *testing.T) {
	t.Parallel()

	id, err := ParseSubject("19")
	require.NoError(t, err)
	assert.Equal(t, uint(19), id)

	_, err = ParseSubject("abc")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
