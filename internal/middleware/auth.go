package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/changelog/internal/httputil"
	"github.com/persistorai/changelog/internal/security"
)

// PrincipalKey is the gin context key holding the authenticated principal.
const PrincipalKey = "principal"

// authTimingFloor is the minimum response time for rejected requests so that
// valid and invalid keys cannot be told apart by latency.
const authTimingFloor = 50 * time.Millisecond

// truncateKey returns at most the first 4 characters of key followed by "...".
func truncateKey(key string) string {
	if len(key) > 4 {
		return key[:4] + "..."
	}
	return key
}

// enforceTimingFloor sleeps if needed so the response takes at least authTimingFloor.
func enforceTimingFloor(start time.Time) {
	if elapsed := time.Since(start); elapsed < authTimingFloor {
		time.Sleep(authTimingFloor - elapsed)
	}
}

// KeySet maps bearer tokens to principals. Tokens are compared by hash in
// constant time.
type KeySet struct {
	hashes     [][sha256.Size]byte
	principals []string
}

// NewKeySet builds a KeySet from principal to key pairs.
func NewKeySet(keys map[string]string) *KeySet {
	ks := &KeySet{}
	for principal, key := range keys {
		ks.hashes = append(ks.hashes, sha256.Sum256([]byte(key)))
		ks.principals = append(ks.principals, principal)
	}

	return ks
}

// Lookup returns the principal for key.
func (ks *KeySet) Lookup(key string) (string, bool) {
	sum := sha256.Sum256([]byte(key))
	found := -1

	for i, h := range ks.hashes {
		if subtle.ConstantTimeCompare(sum[:], h[:]) == 1 {
			found = i
		}
	}

	if found < 0 {
		return "", false
	}

	return ks.principals[found], true
}

// AuthMiddleware returns Gin middleware that authenticates requests via
// Bearer token and stores the matching principal under PrincipalKey. guard
// is optional; when set, clients with repeated failures are locked out and
// told when to retry.
func AuthMiddleware(keys *KeySet, guard *security.Guard, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if c.Writer.Status() == http.StatusUnauthorized {
				enforceTimingFloor(start)
			}
		}()

		client := c.ClientIP()
		if guard != nil {
			if left, blocked := guard.Blocked(client); blocked {
				respondLockedOut(c, left)
				return
			}
		}

		apiKey := ExtractBearerToken(c)
		if apiKey == "" {
			httputil.RespondError(c, http.StatusUnauthorized, httputil.CodeUnauthorized, "missing or invalid authorization header")
			return
		}

		principal, ok := keys.Lookup(apiKey)
		if !ok {
			logAuthFailure(log, c, apiKey)
			if guard != nil && guard.Fail(client) {
				left, _ := guard.Blocked(client)
				respondLockedOut(c, left)
				return
			}
			httputil.RespondError(c, http.StatusUnauthorized, httputil.CodeUnauthorized, "invalid api key")
			return
		}

		if guard != nil {
			guard.Succeed(client)
		}

		c.Set(PrincipalKey, principal)
		c.Next()
	}
}

func respondLockedOut(c *gin.Context, left time.Duration) {
	c.Header("Retry-After", strconv.Itoa(int(math.Ceil(left.Seconds()))))
	httputil.RespondError(c, http.StatusTooManyRequests, httputil.CodeLockedOut, "too many failed authentication attempts")
}

// ExtractBearerToken extracts the API key from the Authorization header.
func ExtractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// logAuthFailure logs a failed authentication attempt.
func logAuthFailure(log *logrus.Logger, c *gin.Context, apiKey string) {
	log.WithFields(logrus.Fields{
		"client_ip":  c.ClientIP(),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"request_id": c.GetString(RequestIDKey),
		"key_prefix": truncateKey(apiKey),
	}).Warn("auth.rejected")
}
