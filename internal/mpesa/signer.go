package mpesa

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// timestampLayout is YYYYMMDDHHmmss.
const timestampLayout = "20060102150405"

// Timestamp formats t as the 14 digit local time stamp used in signed requests.
func Timestamp(t time.Time) string {
	return t.Local().Format(timestampLayout)
}

// Password derives the request password from the merchant credentials and
// the request timestamp.
func Password(shortcode, passkey, timestamp string) (string, error) {
	if shortcode == "" {
		return "", fmt.Errorf("%w: shortcode", ErrMissingCredential)
	}
	if passkey == "" {
		return "", fmt.Errorf("%w: passkey", ErrMissingCredential)
	}
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp)), nil
}

// Signature is a password together with the timestamp it was derived from.
type Signature struct {
	Password  string
	Timestamp string
}

// Signer produces a fresh signature for every request.
type Signer struct {
	shortcode string
	passkey   string
	now       func() time.Time
}

// NewSigner creates a Signer for the given merchant credentials. Surrounding
// whitespace is dropped; a stray space would corrupt every password.
func NewSigner(shortcode, passkey string) *Signer {
	return &Signer{
		shortcode: strings.TrimSpace(shortcode),
		passkey:   strings.TrimSpace(passkey),
		now:       time.Now,
	}
}

// WithClock overrides the time source.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

// Shortcode returns the merchant shortcode the signer was built with.
func (s *Signer) Shortcode() string {
	return s.shortcode
}

// Sign stamps the current time and derives the password for it.
func (s *Signer) Sign() (Signature, error) {
	ts := Timestamp(s.now())
	password, err := Password(s.shortcode, s.passkey, ts)
	if err != nil {
		return Signature{}, err
	}
	return Signature{Password: password, Timestamp: ts}, nil
}
