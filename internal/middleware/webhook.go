package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	signatureHeader  = "X-Signature"
	maxWebhookBodyKB = 64
)

// VerifySignature accepts only requests whose X-Signature header is the hex HMAC-SHA256
// of the raw body under secret. An empty secret disables the route.
func VerifySignature(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			abort(c, http.StatusServiceUnavailable, "webhook not configured")
			return
		}

		signature := c.GetHeader(signatureHeader)
		if signature == "" {
			abort(c, http.StatusUnauthorized, "missing signature")
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyKB<<10))
		if err != nil {
			abort(c, http.StatusBadRequest, "unreadable body")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if !ValidSignature(secret, body, signature) {
			abort(c, http.StatusUnauthorized, "invalid signature")
			return
		}
		c.Next()
	}
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidSignature compares signature against the expected one in constant time.
func ValidSignature(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}
