package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStaticVerifier_Verify(t *testing.T) {
	v := NewStaticVerifier([]StaticCredential{
		{Token: "hr-secret", ActorID: "hr-001", Role: "hr"},
		{Token: "mgr-secret", ActorID: "mgr-001", Role: "manager", PropertyID: "prop-100"},
	}, zap.NewNop())
	ctx := context.Background()

	t.Run("resolves a provisioned credential", func(t *testing.T) {
		cred, err := v.Verify(ctx, "mgr-secret")
		require.NoError(t, err)
		assert.Equal(t, "mgr-001", cred.ActorID)
		assert.Equal(t, "manager", cred.Role)
		assert.Equal(t, "prop-100", cred.PropertyID)
	})

	t.Run("rejects an unknown credential", func(t *testing.T) {
		_, err := v.Verify(ctx, "guessed")
		assert.Error(t, err)
	})

	t.Run("rejects an empty credential", func(t *testing.T) {
		_, err := v.Verify(ctx, "")
		assert.Error(t, err)
	})

	t.Run("raw token is not a usable digest", func(t *testing.T) {
		cred, err := v.Verify(ctx, "hr-secret")
		require.NoError(t, err)

		_, err = v.Verify(ctx, digest("hr-secret"))
		assert.Error(t, err, "the stored digest must not verify as a credential")
		assert.Equal(t, "hr-001", cred.ActorID)
	})
}
