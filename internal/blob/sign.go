package blob

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrBadSignature is returned when a signed URL does not verify.
	ErrBadSignature = errors.New("invalid signature")

	// ErrExpired is returned when a signed URL is past its expiry.
	ErrExpired = errors.New("signed url expired")
)

// DefaultTTL is the lifetime of a signed URL when none is given.
const DefaultTTL = 15 * time.Minute

// Signer issues and verifies HMAC-SHA256 signed object URLs of the form
// <base>/objects/<key>?expires=<unix>&sig=<hex>.
//
// Thread-safety: Signer is immutable and safe for concurrent use.
type Signer struct {
	secret []byte
	base   string
	now    func() time.Time
}

// SignerOption configures a Signer.
type SignerOption func(*Signer)

// WithNow sets the clock used for expiry.
func WithNow(now func() time.Time) SignerOption {
	return func(s *Signer) {
		s.now = now
	}
}

// NewSigner returns a signer for URLs rooted at base (for example
// "http://localhost:8080"). An empty base yields relative URLs.
func NewSigner(secret []byte, base string, opts ...SignerOption) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("signer: empty secret")
	}
	s := &Signer{
		secret: append([]byte(nil), secret...),
		base:   strings.TrimRight(base, "/"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Signed is an issued URL and its expiry.
type Signed struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Sign returns a URL for key valid for ttl. A non-positive ttl uses
// DefaultTTL.
func (s *Signer) Sign(key string, ttl time.Duration) (Signed, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return Signed{}, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	expires := s.now().Add(ttl).Truncate(time.Second)

	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires.Unix(), 10))
	q.Set("sig", s.mac(clean, expires.Unix()))

	escaped := make([]string, 0, strings.Count(clean, "/")+1)
	for _, seg := range strings.Split(clean, "/") {
		escaped = append(escaped, url.PathEscape(seg))
	}
	return Signed{
		URL:       s.base + "/objects/" + strings.Join(escaped, "/") + "?" + q.Encode(),
		ExpiresAt: expires.UTC(),
	}, nil
}

// Verify checks the expires and sig query values issued for key.
func (s *Signer) Verify(key, expires, sig string) error {
	clean, err := CleanKey(key)
	if err != nil {
		return err
	}
	unix, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad expires %q", ErrBadSignature, expires)
	}
	want := s.mac(clean, unix)
	if !hmac.Equal([]byte(want), []byte(strings.ToLower(sig))) {
		return ErrBadSignature
	}
	if !s.now().Before(time.Unix(unix, 0)) {
		return ErrExpired
	}
	return nil
}

func (s *Signer) mac(key string, expires int64) string {
	h := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(h, "%s\n%d", key, expires)
	return hex.EncodeToString(h.Sum(nil))
}
