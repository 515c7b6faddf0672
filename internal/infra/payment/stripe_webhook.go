package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"jobhunt-billing/internal/domain"
)

// DefaultSignatureTolerance bounds how stale a signed timestamp may be.
// Providers retry for hours; the tolerance only defeats replay of captured
// requests, not legitimate retries (those are re-signed).
const DefaultSignatureTolerance = 5 * time.Minute

// VerifyStripeSignature checks a Stripe-style signature header of the form
//
//	t=<unix>,v1=<hex hmac>[,v1=<hex hmac>...]
//
// where the HMAC-SHA256 is computed over "<t>.<payload>" with the endpoint
// secret. Multiple v1 entries appear during secret rotation; any match
// passes.
func VerifyStripeSignature(secret string, payload []byte, header string, now time.Time, tolerance time.Duration) error {
	var ts int64
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			v, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return domain.ErrWebhookSignatureInvalid
			}
			ts = v
		case "v1":
			candidates = append(candidates, kv[1])
		}
	}
	if ts == 0 || len(candidates) == 0 {
		return domain.ErrWebhookSignatureInvalid
	}
	signedAt := time.Unix(ts, 0)
	if tolerance > 0 {
		drift := now.Sub(signedAt)
		if drift < 0 {
			drift = -drift
		}
		if drift > tolerance {
			return domain.ErrWebhookSignatureInvalid
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, c := range candidates {
		if hmac.Equal([]byte(expected), []byte(c)) {
			return nil
		}
	}
	return domain.ErrWebhookSignatureInvalid
}

// SignPayload produces a header VerifyStripeSignature accepts. Used by the
// noop gateway and tests.
func SignPayload(secret string, payload []byte, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", at.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}
