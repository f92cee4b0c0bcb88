// Package keys handles the hex encoded secret and public key strings that
// identify a node, deriving the public key with BIP-340 x-only serialization.
package keys

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/nostrmq/nostrmq/pkg/hex"
)

func GeneratePrivateKey() string {
	params := btcec.S256().Params()
	one := new(big.Int).SetInt64(1)

	b := make([]byte, params.BitSize/8+8)
	if _, e := io.ReadFull(rand.Reader, b); e != nil {
		return ""
	}

	k := new(big.Int).SetBytes(b)
	n := new(big.Int).Sub(params.N, one)
	k.Mod(k, n)
	k.Add(k, one)

	return fmt.Sprintf("%064x", k.Bytes())
}

func GetPublicKey(sk string) (string, error) {
	b, e := hex.Dec(sk)
	if e != nil {
		return "", e
	}

	_, pk := btcec.PrivKeyFromBytes(b)
	return hex.Enc(schnorr.SerializePubKey(pk)), nil
}

// IsValid32ByteHex reports whether pk is a lowercase hex encoding of exactly
// 32 bytes, the form all keys and event ids take on the wire.
func IsValid32ByteHex(pk string) bool {
	if strings.ToLower(pk) != pk {
		return false
	}
	if len(pk) != 64 {
		return false
	}
	dec, _ := hex.Dec(pk)
	return len(dec) == 32
}
