package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestRandBytes_LengthAndUniqueness(t *testing.T) {
	t.Parallel()

	const n = 64
	a, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes(2): %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("two subsequent RandBytes(%d) are equal", n)
	}
}

func TestHashPassword_SaltedEncoding(t *testing.T) {
	t.Parallel()

	h1, err := HashPassword("p@ssw0rd")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := HashPassword("p@ssw0rd")
	if err != nil {
		t.Fatalf("HashPassword(2): %v", err)
	}
	if !strings.HasPrefix(h1, "$argon2id$v=19$m=65536,t=3,p=1$") {
		t.Fatalf("unexpected encoding: %s", h1)
	}
	if h1 == h2 {
		t.Fatalf("same password must produce different encodings (fresh salt)")
	}
	if strings.Contains(h1, "p@ssw0rd") {
		t.Fatalf("encoding leaks the password")
	}
}

func TestVerifyPassword(t *testing.T) {
	t.Parallel()

	pw := "correct horse battery staple"
	hash, err := HashPassword(pw)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	if !VerifyPassword(pw, hash) {
		t.Fatalf("VerifyPassword: expected true for correct password")
	}
	if VerifyPassword("wrong", hash) {
		t.Fatalf("VerifyPassword: expected false for wrong password")
	}
	if VerifyPassword("", hash) {
		t.Fatalf("VerifyPassword: expected false for empty password")
	}
}

func TestVerifyPassword_Malformed(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("pw")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	parts := strings.Split(hash, "$")

	bad := []string{
		"",
		"plain-text",
		"$bcrypt$v=19$m=65536,t=3,p=1$" + parts[4] + "$" + parts[5],
		"$argon2id$v=16$m=65536,t=3,p=1$" + parts[4] + "$" + parts[5],
		"$argon2id$v=19$garbage$" + parts[4] + "$" + parts[5],
		"$argon2id$v=19$m=65536,t=3,p=1$!!!$" + parts[5],
		"$argon2id$v=19$m=65536,t=3,p=1$" + parts[4] + "$",
	}
	for _, enc := range bad {
		if VerifyPassword("pw", enc) {
			t.Fatalf("malformed encoding accepted: %q", enc)
		}
	}
}
