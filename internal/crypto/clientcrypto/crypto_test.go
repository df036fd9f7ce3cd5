package clientcrypto

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"testing"
)

func TestRand_LengthUniq(t *testing.T) {
	t.Parallel()
	const n = 48
	a, err := Rand(n)
	if err != nil {
		t.Fatalf("Rand: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, _ := Rand(n)
	if bytes.Equal(a, b) {
		t.Fatalf("Rand produced equal slices")
	}
}

func TestDeriveKEK_DeterministicAndSaltDependent(t *testing.T) {
	t.Parallel()
	pw := []byte("secret-pass")
	s1 := []byte("salt-1")
	s2 := []byte("salt-2")
	k1 := DeriveKEK(pw, s1)
	k2 := DeriveKEK(pw, s1)
	if subtle.ConstantTimeCompare(k1, k2) != 1 {
		t.Fatalf("DeriveKEK not deterministic")
	}
	if subtle.ConstantTimeCompare(k1, DeriveKEK(pw, s2)) != 0 {
		t.Fatalf("DeriveKEK must change with salt")
	}
	if subtle.ConstantTimeCompare(k1, DeriveKEK([]byte("other"), s1)) != 0 {
		t.Fatalf("DeriveKEK must change with passphrase")
	}
}

func TestDeriveSubkey_PurposeBound(t *testing.T) {
	t.Parallel()
	kek := DeriveKEK([]byte("pw"), []byte("salt"))
	a, err := DeriveSubkey(kek, "session")
	if err != nil || len(a) != KeyLen {
		t.Fatalf("DeriveSubkey: len=%d err=%v", len(a), err)
	}
	b, _ := DeriveSubkey(kek, "session")
	c, _ := DeriveSubkey(kek, "other")
	if !bytes.Equal(a, b) || bytes.Equal(a, c) {
		t.Fatalf("subkey must be deterministic per purpose")
	}
}

func TestSealOpen_AADBinding(t *testing.T) {
	t.Parallel()
	key, _ := Rand(KeyLen)
	pt := []byte("eyJhbGciOi.token")

	ct, err := Seal(key, []byte("access_token"), pt)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	out, err := Open(key, []byte("access_token"), ct)
	if err != nil || !bytes.Equal(out, pt) {
		t.Fatalf("Open: %q %v", out, err)
	}
	if _, err := Open(key, []byte("refresh_token"), ct); err == nil {
		t.Fatalf("Open must fail when the value is moved to another key")
	}
	other, _ := Rand(KeyLen)
	if _, err := Open(other, []byte("access_token"), ct); err == nil {
		t.Fatalf("Open must fail with wrong key")
	}
}

func TestOpen_Short(t *testing.T) {
	t.Parallel()
	key, _ := Rand(KeyLen)
	if _, err := Open(key, nil, []byte{1, 2, 3}); !errors.Is(err, ErrShortCiphertext) {
		t.Fatalf("want ErrShortCiphertext, got %v", err)
	}
}

func TestSeal_BadKey(t *testing.T) {
	t.Parallel()
	if _, err := Seal([]byte("short"), nil, []byte("x")); err == nil {
		t.Fatalf("want error for bad key size")
	}
}
