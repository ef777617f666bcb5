package codec

import (
	"bytes"
	"strings"
	"testing"
)

func testCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := NewCipher(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("NewCipher error: %v", err)
	}
	return c
}

func TestCipherRoundTrip(t *testing.T) {
	c := testCipher(t)

	inputs := []string{
		"",
		"ya29.a0AfH6SMBx",
		"exactly-16-bytes",
		"1//0gLx-refresh:token:with:colons",
		"юникод ✓",
		strings.Repeat("x", 1000),
	}
	for _, in := range inputs {
		enc, err := c.Encrypt(in)
		if err != nil {
			t.Fatalf("Encrypt(%q) error: %v", in, err)
		}
		out, err := c.Decrypt(enc)
		if err != nil {
			t.Fatalf("Decrypt error for %q: %v", in, err)
		}
		if out != in {
			t.Fatalf("round trip mismatch: got %q want %q", out, in)
		}
	}
}

func TestCipherUsesRandomIV(t *testing.T) {
	c := testCipher(t)

	first, err := c.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt error: %v", err)
	}
	second, err := c.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt error: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct ciphertexts for repeated plaintext")
	}

	ivHex, _, ok := strings.Cut(first, ":")
	if !ok || len(ivHex) != 32 {
		t.Fatalf("expected 16 byte hex iv prefix, got %q", first)
	}
}

func TestCipherRejectsMalformedInput(t *testing.T) {
	c := testCipher(t)

	for _, in := range []string{"", "nocolon", "zz:00", "00112233445566778899aabbccddeeff:abc", "00112233445566778899aabbccddeeff:"} {
		if _, err := c.Decrypt(in); err == nil {
			t.Fatalf("expected error decrypting %q", in)
		}
	}
}

func TestCipherWrongKeyFails(t *testing.T) {
	enc, err := testCipher(t).Encrypt("secret token value")
	if err != nil {
		t.Fatalf("Encrypt error: %v", err)
	}

	other, err := NewCipher(bytes.Repeat([]byte{0x07}, 32))
	if err != nil {
		t.Fatalf("NewCipher error: %v", err)
	}
	if out, err := other.Decrypt(enc); err == nil && out == "secret token value" {
		t.Fatalf("expected decryption with wrong key to fail")
	}
}

func TestNewCipherRejectsShortKey(t *testing.T) {
	if _, err := NewCipher([]byte("too-short")); err == nil {
		t.Fatalf("expected error for short key")
	}
}
