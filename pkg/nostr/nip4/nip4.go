// Package nip4 implements the NIP-04 encrypted payload scheme: an ECDH
// shared secret between the sender secret key and recipient public key,
// AES-256-CBC over the cleartext, and a ciphertext string of the form
// `<base64 ciphertext>?iv=<base64 iv>`.
package nip4

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/nostrmq/nostrmq/pkg/hex"
)

// ComputeSharedSecret returns a shared secret key used to encrypt and decrypt
// messages between a secret key holder and the owner of the given public key.
// The shared point's X coordinate is the AES key, as NIP-04 prescribes.
func ComputeSharedSecret(pub string, sk string) (sharedSecret []byte,
	err error) {

	var skBytes []byte
	if skBytes, err = hex.Dec(sk); err != nil {
		return nil, fmt.Errorf("error decoding sender secret key: %w", err)
	}
	secKey, _ := btcec.PrivKeyFromBytes(skBytes)

	// the pubkey is an x-only coordinate. secp256k1 needs the full form so
	// assume an even Y, the parity BIP-340 keys imply.
	var pubBytes []byte
	if pubBytes, err = hex.Dec("02" + pub); err != nil {
		return nil, fmt.Errorf("error decoding recipient public key '%s': %w",
			pub, err)
	}
	var pubKey *btcec.PublicKey
	if pubKey, err = btcec.ParsePubKey(pubBytes); err != nil {
		return nil, fmt.Errorf("error parsing recipient public key '%s': %w",
			pub, err)
	}

	return btcec.GenerateSharedSecret(secKey, pubKey), nil
}

// Encrypt encrypts a message with a key generated by ComputeSharedSecret.
func Encrypt(message string, key []byte) (ct string, err error) {
	// block size is 16 bytes
	iv := make([]byte, 16)
	if _, err = rand.Read(iv); err != nil {
		return "", fmt.Errorf("error creating initialization vector: %w", err)
	}

	// automatically picks aes-256 based on key length (32 bytes)
	var block cipher.Block
	if block, err = aes.NewCipher(key); err != nil {
		return "", fmt.Errorf("error creating block cipher: %w", err)
	}
	mode := cipher.NewCBCEncrypter(block, iv)

	plaintext := []byte(message)

	// add padding
	base := len(plaintext)

	// this will be a number between 1 and 16 (inclusive), never 0
	padding := block.BlockSize() - base%block.BlockSize()

	// encode the padding in all the padding bytes
	paddedMsgBytes := make([]byte, base+padding)
	copy(paddedMsgBytes, plaintext)
	for i := base; i < base+padding; i++ {
		paddedMsgBytes[i] = byte(padding)
	}

	ciphertext := make([]byte, len(paddedMsgBytes))
	mode.CryptBlocks(ciphertext, paddedMsgBytes)

	return base64.StdEncoding.EncodeToString(ciphertext) + "?iv=" +
		base64.StdEncoding.EncodeToString(iv), nil
}

// Decrypt decrypts a content string with a key generated by
// ComputeSharedSecret.
func Decrypt(content string, key []byte) (message string, err error) {
	parts := strings.Split(content, "?iv=")
	if len(parts) < 2 {
		return "", fmt.Errorf(
			"error parsing encrypted message: no initialization vector")
	}
	var ciphertext []byte
	if ciphertext, err = base64.StdEncoding.DecodeString(parts[0]); err != nil {
		return "", fmt.Errorf("error decoding ciphertext from base64: %w", err)
	}
	var iv []byte
	if iv, err = base64.StdEncoding.DecodeString(parts[1]); err != nil {
		return "", fmt.Errorf("error decoding iv from base64: %w", err)
	}

	var block cipher.Block
	if block, err = aes.NewCipher(key); err != nil {
		return "", fmt.Errorf("error creating block cipher: %w", err)
	}
	if len(iv) != block.BlockSize() {
		return "", fmt.Errorf("invalid iv length %d", len(iv))
	}
	if len(ciphertext) == 0 ||
		len(ciphertext)%block.BlockSize() != 0 {
		return "", fmt.Errorf("invalid ciphertext length %d", len(ciphertext))
	}
	mode := cipher.NewCBCDecrypter(block, iv)

	plaintext := make([]byte, len(ciphertext))
	mode.CryptBlocks(plaintext, ciphertext)

	// remove padding
	var (
		message1 = string(plaintext)
		plen     = len(message1)
	)
	if plen == 0 {
		return "", fmt.Errorf("invalid padding amount: 0")
	}
	padding := int(message1[plen-1])
	if padding == 0 || padding > plen || padding > block.BlockSize() {
		return "", fmt.Errorf("invalid padding amount: %d", padding)
	}

	message = message1[0 : plen-padding]
	return message, nil
}
