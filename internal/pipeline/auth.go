package pipeline

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// claims is the subset of the JWT payload this pipeline cares about: a
// viewer bucket used by the micro-cache key (spec.md §4.6 step 5) and
// nothing else — authorization beyond "has a valid signature" is out of
// scope here.
type claims struct {
	jwt.RegisteredClaims
	ViewerBucket string `json:"viewer_bucket"`
}

// Authenticator verifies the bearer token on incoming manifest and cue
// requests. DevAllowNoAuth makes every request succeed with the default
// viewer bucket, for local development only.
type Authenticator struct {
	PublicKey      []byte
	Algorithm      string // "HS256" or "RS256"
	DevAllowNoAuth bool
}

var errMissingToken = errors.New("pipeline: missing bearer token")

// Authenticate verifies r's Authorization header and returns the viewer
// bucket to key the micro-cache on. On failure it returns a non-nil error
// that the caller must turn into a 403.
func (a *Authenticator) Authenticate(r *http.Request) (string, error) {
	if a.DevAllowNoAuth {
		return "A", nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errMissingToken
	}
	tokenStr := strings.TrimPrefix(header, "Bearer ")
	if tokenStr == header {
		return "", errMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenStr, &claims{}, a.keyFunc)
	if err != nil || !token.Valid {
		return "", errors.New("pipeline: invalid token")
	}
	c, ok := token.Claims.(*claims)
	if !ok {
		return "", errors.New("pipeline: unexpected claims type")
	}
	if c.ViewerBucket == "" {
		return "A", nil
	}
	return c.ViewerBucket, nil
}

func (a *Authenticator) keyFunc(t *jwt.Token) (interface{}, error) {
	switch a.Algorithm {
	case "RS256":
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("pipeline: unexpected signing method")
		}
		return jwt.ParseRSAPublicKeyFromPEM(a.PublicKey)
	default:
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("pipeline: unexpected signing method")
		}
		return a.PublicKey, nil
	}
}
