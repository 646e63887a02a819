package federated

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

func stubGoogle(payload *idtoken.Payload, err error) *GoogleVerifier {
	return &GoogleVerifier{
		validate: func(ctx context.Context, token, audience string) (*idtoken.Payload, error) {
			if err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

func TestGoogleVerifier_Verify(t *testing.T) {
	v := stubGoogle(&idtoken.Payload{
		Subject: "109",
		Claims: map[string]any{
			"email":          "jane@example.com",
			"email_verified": true,
			"name":           "Jane Doe",
		},
	}, nil)

	fed, err := v.Verify(context.Background(), "token", "client.apps.googleusercontent.com")
	require.NoError(t, err)

	assert.Equal(t, ProviderGoogle, fed.Provider)
	assert.Equal(t, "109", fed.Subject)
	assert.Equal(t, "jane@example.com", fed.Email)
	assert.True(t, fed.EmailVerified)
	assert.Equal(t, "Jane Doe", fed.DisplayName)
}

func TestGoogleVerifier_Errors(t *testing.T) {
	t.Run("audience required", func(t *testing.T) {
		_, err := stubGoogle(&idtoken.Payload{}, nil).Verify(context.Background(), "token", "")
		assert.Error(t, err)
	})

	t.Run("validator error", func(t *testing.T) {
		_, err := stubGoogle(nil, errors.New("idtoken: token expired")).Verify(context.Background(), "token", "aud")
		assert.Error(t, err)
	})

	t.Run("missing email", func(t *testing.T) {
		v := stubGoogle(&idtoken.Payload{Subject: "1", Claims: map[string]any{"name": "x"}}, nil)
		_, err := v.Verify(context.Background(), "token", "aud")
		assert.Error(t, err)
	})
}
