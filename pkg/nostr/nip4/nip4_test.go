package nip4

import (
	"strings"
	"testing"

	"github.com/nostrmq/nostrmq/pkg/nostr/keys"
)

func makeKeyPair(t *testing.T) (sec, pub string) {
	t.Helper()
	sec = keys.GeneratePrivateKey()
	var err error
	if pub, err = keys.GetPublicKey(sec); err != nil {
		t.Fatalf("GetPublicKey: %v", err)
	}
	return
}

func TestSharedSecretIsSymmetric(t *testing.T) {
	secA, pubA := makeKeyPair(t)
	secB, pubB := makeKeyPair(t)

	ssAB, err := ComputeSharedSecret(pubB, secA)
	if err != nil {
		t.Fatal(err)
	}
	ssBA, err := ComputeSharedSecret(pubA, secB)
	if err != nil {
		t.Fatal(err)
	}
	if string(ssAB) != string(ssBA) {
		t.Error("shared secrets differ between the two sides")
	}
	if len(ssAB) != 32 {
		t.Errorf("shared secret length %d, want 32", len(ssAB))
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	secA, pubA := makeKeyPair(t)
	secB, pubB := makeKeyPair(t)

	messages := []string{
		"",
		"x",
		`{"target":"abc","response":"def","payload":{"n":1}}`,
		"exactly sixteen!",
		strings.Repeat("long message ", 100),
		"unicode: éèê ☃",
	}
	for _, m := range messages {
		ss, err := ComputeSharedSecret(pubB, secA)
		if err != nil {
			t.Fatal(err)
		}
		ct, err := Encrypt(m, ss)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(ct, "?iv=") {
			t.Fatalf("ciphertext '%s' missing iv separator", ct)
		}

		// the recipient derives the same key from the other direction
		ssRecv, err := ComputeSharedSecret(pubA, secB)
		if err != nil {
			t.Fatal(err)
		}
		pt, err := Decrypt(ct, ssRecv)
		if err != nil {
			t.Fatalf("decrypting '%s': %v", ct, err)
		}
		if pt != m {
			t.Errorf("round trip got '%s', want '%s'", pt, m)
		}
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	secA, _ := makeKeyPair(t)
	_, pubB := makeKeyPair(t)
	secC, _ := makeKeyPair(t)

	ss, err := ComputeSharedSecret(pubB, secA)
	if err != nil {
		t.Fatal(err)
	}
	ct, err := Encrypt("secret message", ss)
	if err != nil {
		t.Fatal(err)
	}

	ssWrong, err := ComputeSharedSecret(pubB, secC)
	if err != nil {
		t.Fatal(err)
	}
	if pt, err := Decrypt(ct, ssWrong); err == nil &&
		pt == "secret message" {

		t.Error("decrypt with the wrong key recovered the cleartext")
	}
}

func TestDecryptMalformed(t *testing.T) {
	sec, pub := makeKeyPair(t)
	ss, err := ComputeSharedSecret(pub, sec)
	if err != nil {
		t.Fatal(err)
	}
	cases := []string{
		"",
		"no separator here",
		"not-base64!!!?iv=also-not-base64!!!",
		"YWJj?iv=YWJj",        // iv not block sized
		"?iv=AAAAAAAAAAAAAAAAAAAAAA==", // empty ciphertext
	}
	for _, c := range cases {
		if _, err = Decrypt(c, ss); err == nil {
			t.Errorf("Decrypt(%q) should have failed", c)
		}
	}
}
