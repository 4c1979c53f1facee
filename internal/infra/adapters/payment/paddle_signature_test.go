//go:build !integration

package payment

import (
	"errors"
	"strings"
	"testing"

	"bigdaytimer-premium/internal/domain"
)

func newVerifier(t *testing.T, secret, algo string) *PaddleSignatureVerifier {
	t.Helper()
	v, err := NewPaddleSignatureVerifier(secret, algo)
	if err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	return v
}

func TestPaddleSignatureVerifier_Verify(t *testing.T) {
	body := []byte(`alert_name=payment_succeeded&order_id=o1&passthrough=%7B%22userId%22%3A%22u1%22%7D`)

	t.Run("should accept a header signature over the raw body", func(t *testing.T) {
		v := newVerifier(t, "s3cret", "sha1")
		if err := v.Verify(body, v.Sign(body)); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
	})

	t.Run("should accept upper-case hex", func(t *testing.T) {
		v := newVerifier(t, "s3cret", "sha1")
		if err := v.Verify(body, strings.ToUpper(v.Sign(body))); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
	})

	t.Run("should support sha256", func(t *testing.T) {
		v := newVerifier(t, "s3cret", "sha256")
		sig := v.Sign(body)
		if len(sig) != 64 {
			t.Fatalf("expected a sha256 hex digest, got %q", sig)
		}
		if err := v.Verify(body, sig); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
	})

	t.Run("should reject a tampered body", func(t *testing.T) {
		v := newVerifier(t, "s3cret", "sha1")
		sig := v.Sign(body)
		tampered := []byte(strings.Replace(string(body), "o1", "o2", 1))
		if err := v.Verify(tampered, sig); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("should reject a signature made with another secret", func(t *testing.T) {
		v := newVerifier(t, "s3cret", "sha1")
		other := newVerifier(t, "other", "sha1")
		if err := v.Verify(body, other.Sign(body)); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("should reject a missing signature", func(t *testing.T) {
		v := newVerifier(t, "s3cret", "sha1")
		if err := v.Verify(body, ""); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("should reject everything without a secret", func(t *testing.T) {
		signer := newVerifier(t, "", "sha1")
		if err := signer.Verify(body, signer.Sign(body)); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("should reject non-hex input", func(t *testing.T) {
		v := newVerifier(t, "s3cret", "sha1")
		if err := v.Verify(body, "not-hex"); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("should accept an embedded p_signature", func(t *testing.T) {
		v := newVerifier(t, "s3cret", "sha1")
		signed := v.SignForm(body)
		if err := v.Verify(signed, ""); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
	})

	t.Run("should reject an embedded signature after the body changed", func(t *testing.T) {
		v := newVerifier(t, "s3cret", "sha1")
		signed := string(v.SignForm(body))
		tampered := strings.Replace(signed, "order_id=o1", "order_id=o9", 1)
		if err := v.Verify([]byte(tampered), ""); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestNewPaddleSignatureVerifier_UnknownAlgo(t *testing.T) {
	if _, err := NewPaddleSignatureVerifier("s", "md5"); err == nil {
		t.Fatal("expected an error for md5")
	}
}

func TestStripEmbeddedSignature(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		sig     string
		rest    string
		wantErr bool
	}{
		{name: "last pair", body: "a=1&b=2&p_signature=abc", sig: "abc", rest: "a=1&b=2"},
		{name: "first pair", body: "p_signature=abc&a=1", sig: "abc", rest: "a=1"},
		{name: "middle pair", body: "a=1&p_signature=abc&b=2", sig: "abc", rest: "a=1&b=2"},
		{name: "only pair", body: "p_signature=abc", sig: "abc", rest: ""},
		{name: "escaped value", body: "a=1&p_signature=ab%2Bc", sig: "ab+c", rest: "a=1"},
		{name: "absent", body: "a=1&b=2", sig: "", rest: "a=1&b=2"},
		{name: "similar key kept", body: "xp_signature=1&a=2", sig: "", rest: "xp_signature=1&a=2"},
		{name: "duplicate", body: "p_signature=a&p_signature=b", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sig, rest, err := StripEmbeddedSignature([]byte(tc.body))
			if tc.wantErr {
				if !errors.Is(err, domain.ErrUnauthorized) {
					t.Fatalf("expected ErrUnauthorized, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, but got: %v", err)
			}
			if sig != tc.sig || string(rest) != tc.rest {
				t.Errorf("got (%q, %q), want (%q, %q)", sig, rest, tc.sig, tc.rest)
			}
		})
	}
}
