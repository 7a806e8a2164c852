package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// signatureTolerance bounds the age of a signed webhook timestamp.
const signatureTolerance = 5 * time.Minute

var errBadSignature = errors.New("webhook signature mismatch")

// verifyWebhookSignature checks the svix-id, svix-timestamp and
// svix-signature headers the provider signs webhooks with. The signed content is "{id}.{timestamp}.{body}" with HMAC-SHA256, and the
// signature header may list several space-separated "v1,<base64>" entries.
func verifyWebhookSignature(secret string, header http.Header, body []byte, now time.Time) error {
	id := header.Get("svix-id")
	timestamp := header.Get("svix-timestamp")
	signatures := header.Get("svix-signature")
	if id == "" || timestamp == "" || signatures == "" {
		return errors.New("missing webhook signature headers")
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid webhook timestamp %q", timestamp)
	}
	sent := time.Unix(unix, 0)
	if now.Sub(sent) > signatureTolerance || sent.Sub(now) > signatureTolerance {
		return fmt.Errorf("webhook timestamp %s outside tolerance", sent.UTC().Format(time.RFC3339))
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		return fmt.Errorf("decode webhook secret: %w", err)
	}

	expected := signPayload(key, id, timestamp, body)
	for _, entry := range strings.Fields(signatures) {
		version, sig, ok := strings.Cut(entry, ",")
		if !ok || version != "v1" {
			continue
		}
		got, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(got, expected) {
			return nil
		}
	}
	return errBadSignature
}

func signPayload(key []byte, id, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id + "." + timestamp + "."))
	mac.Write(body)
	return mac.Sum(nil)
}
