package middlewares

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const SecretHeader = "X-Secret-Key"

// SecretVerifier checks the shared secret presented by notification relays.
// A bcrypt hash, when configured, takes precedence over the plain secret.
// With neither configured every candidate is rejected.
type SecretVerifier struct {
	plain []byte
	hash  []byte
}

func NewSecretVerifier(plain, bcryptHash string) *SecretVerifier {
	v := &SecretVerifier{}
	if p := strings.TrimSpace(plain); p != "" {
		v.plain = []byte(p)
	}
	if h := strings.TrimSpace(bcryptHash); h != "" {
		v.hash = []byte(h)
	}
	return v
}

func (v *SecretVerifier) Configured() bool {
	return v != nil && (len(v.plain) > 0 || len(v.hash) > 0)
}

func (v *SecretVerifier) Verify(candidate string) bool {
	if !v.Configured() || candidate == "" {
		return false
	}
	if len(v.hash) > 0 {
		return bcrypt.CompareHashAndPassword(v.hash, []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare(v.plain, []byte(candidate)) == 1
}

// RequireSecret guards a route with the secret taken from the X-Secret-Key
// header or the "token" query parameter (Pub/Sub push endpoints can only
// carry the latter).
func RequireSecret(v *SecretVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		candidate := c.GetHeader(SecretHeader)
		if candidate == "" {
			candidate = c.Query("token")
		}
		if !v.Verify(candidate) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "invalid secret"})
			return
		}
		c.Next()
	}
}
