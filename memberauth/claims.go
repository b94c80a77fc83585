package memberauth

import (
	"errors"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"
)

var ErrOpaqueCredential = errors.New("memberauth: credential is not a readable token")

// Claims are the identity hints a credential may carry. They are read
// without verifying the signature and must only be used for display and log
// attributes; expiry is deliberately not exposed, since validity is learned
// from the service rejecting a request.
type Claims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

type peekClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`

	jwt.RegisteredClaims
}

// PeekClaims decodes the identity hints of a JWT-shaped credential. Opaque
// credentials return ErrOpaqueCredential.
func PeekClaims(cred string) (Claims, error) {
	if cred == "" {
		return Claims{}, ErrOpaqueCredential
	}

	var pc peekClaims
	if _, _, err := jwt.NewParser().ParseUnverified(cred, &pc); err != nil {
		return Claims{}, ErrOpaqueCredential
	}

	return Claims{Subject: pc.Subject, Email: pc.Email, Name: pc.Name}, nil
}

func claimAttrs(cred string) []any {
	c, err := PeekClaims(cred)
	if err != nil || c.Subject == "" {
		return nil
	}
	return []any{slog.String("user_id", c.Subject)}
}
