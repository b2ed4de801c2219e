// Package auth implements the credential verification capability. The
// service itself does not manage user accounts; bearer credentials are
// provisioned out of band and mapped to actor identities here.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"

	"github.com/crestlinehotels/onboarding/internal/application/port"
)

// StaticCredential is one provisioned bearer credential.
type StaticCredential struct {
	Token      string
	ActorID    string
	Role       string
	PropertyID string
}

// StaticVerifier implements port.CredentialVerifier against a provisioned
// credential table. Tokens are compared by SHA-256 digest so lookup time does
// not leak which prefix matched.
type StaticVerifier struct {
	byDigest map[string]port.Credential
	logger   *zap.Logger
}

// NewStaticVerifier creates a verifier from provisioned credentials
func NewStaticVerifier(credentials []StaticCredential, logger *zap.Logger) *StaticVerifier {
	byDigest := make(map[string]port.Credential, len(credentials))
	for _, c := range credentials {
		byDigest[digest(c.Token)] = port.Credential{
			ActorID:    c.ActorID,
			Role:       c.Role,
			PropertyID: c.PropertyID,
		}
	}
	return &StaticVerifier{
		byDigest: byDigest,
		logger:   logger,
	}
}

// Verify resolves a bearer credential to an actor identity
func (v *StaticVerifier) Verify(ctx context.Context, bearer string) (*port.Credential, error) {
	if bearer == "" {
		return nil, fmt.Errorf("missing credential")
	}

	d := digest(bearer)
	for stored, cred := range v.byDigest {
		if subtle.ConstantTimeCompare([]byte(stored), []byte(d)) == 1 {
			c := cred
			return &c, nil
		}
	}

	v.logger.Warn("Credential verification failed")
	return nil, fmt.Errorf("invalid credential")
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

var _ port.CredentialVerifier = (*StaticVerifier)(nil)
