package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"
)

const (
	HeaderTimestamp = "X-Slack-Request-Timestamp"
	HeaderSignature = "X-Slack-Signature"

	signatureVersion = "v0"
)

// Signer computes request signatures the same way the chat platform does, so
// a forwarded request verifies against the same signing secret.
type Signer struct {
	secret []byte
	now    func() time.Time
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

// Sign returns "v0=" + hex(HMAC-SHA256(secret, "v0:" + timestamp + ":" + payload)).
func (s *Signer) Sign(timestamp, payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(signatureVersion + ":" + timestamp + ":" + payload))
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}

// Resign copies headers and stamps them with the current time and a signature
// over payload. The caller must forward exactly the payload that was signed.
func (s *Signer) Resign(headers http.Header, payload string) http.Header {
	out := headers.Clone()
	if out == nil {
		out = http.Header{}
	}
	ts := strconv.FormatInt(s.now().Unix(), 10)
	out.Set(HeaderTimestamp, ts)
	out.Set(HeaderSignature, s.Sign(ts, payload))
	return out
}

func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
