package push

// Self-issued authentication for outbound push requests: an RSA keypair
// signs a short-lived JWT per delivery, and its public half is served as a
// JWK set so receivers can verify without any shared secret.

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type jwkKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwkSet struct {
	Keys []jwkKey `json:"keys"`
}

// SenderAuth holds the keypair used to sign outbound push notifications.
type SenderAuth struct {
	key      *rsa.PrivateKey
	kid      string
	jwksJSON []byte
}

// NewSenderAuth generates a fresh 2048-bit RSA keypair for this process's
// lifetime; there is no persistence across restarts.
func NewSenderAuth() (*SenderAuth, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate push signing key: %w", err)
	}

	kid := randomKid()
	pub := key.PublicKey
	set := jwkSet{Keys: []jwkKey{{
		Kty: "RSA",
		Kid: kid,
		Alg: "RS256",
		Use: "sig",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}}}

	jwksJSON, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("marshal jwks: %w", err)
	}

	return &SenderAuth{key: key, kid: kid, jwksJSON: jwksJSON}, nil
}

// JWKSHandler serves the public key set at the well-known JWKS path so
// push receivers can verify the signature without a shared secret.
func (a *SenderAuth) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(a.jwksJSON)
	}
}

// SignTask issues a short-lived token asserting which task this push
// delivery concerns, for receivers that want to correlate webhook calls
// back to a task without re-parsing the body.
func (a *SenderAuth) SignTask(taskID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": "a2a-go",
		"sub": taskID,
		"iat": now.Unix(),
		"exp": now.Add(10 * time.Minute).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = a.kid

	return token.SignedString(a.key)
}

func randomKid() string {
	b := make([]byte, 6)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
