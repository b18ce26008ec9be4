package slackapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const signatureWindow = 5 * time.Minute

// VerifySignature checks the v0 HMAC-SHA256 request signature Slack sends
// with every webhook delivery. Requests older than five minutes are
// rejected to block replays.
func VerifySignature(signingSecret, timestampHeader, signatureHeader string, body []byte, now time.Time) error {
	signingSecret = strings.TrimSpace(signingSecret)
	if signingSecret == "" {
		return fmt.Errorf("signing secret is required")
	}
	timestampHeader = strings.TrimSpace(timestampHeader)
	signatureHeader = strings.TrimSpace(signatureHeader)
	if timestampHeader == "" || signatureHeader == "" {
		return fmt.Errorf("missing signature headers")
	}
	ts, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid request timestamp")
	}
	age := now.UTC().Sub(time.Unix(ts, 0).UTC())
	if age > signatureWindow || age < -signatureWindow {
		return fmt.Errorf("request timestamp outside allowed window")
	}

	base := "v0:" + timestampHeader + ":" + string(body)
	mac := hmac.New(sha256.New, []byte(signingSecret))
	mac.Write([]byte(base))
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(signatureHeader), []byte(expected)) {
		return fmt.Errorf("invalid request signature")
	}
	return nil
}
