package recovery

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	qverrors "QueryVerify/internal/errors"
	"QueryVerify/internal/query"
)

type sig = [crypto.SignatureLength]byte

func signDigest(t *testing.T, digest common.Hash) (sig, common.Address) {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	raw, err := crypto.Sign(digest[:], key)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	var s sig
	copy(s[:], raw)

	return s, crypto.PubkeyToAddress(key.PublicKey)
}

func TestRecoverMatchesSigner(t *testing.T) {
	digest, _ := query.Digest([]byte("hello"))
	s, want := signDigest(t, digest)

	got, err := Secp256k1{}.Recover(digest, s)
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if got != want {
		t.Errorf("recovered %s, want %s", got, want)
	}
}

func TestRecoverWrongDigestGivesOtherKey(t *testing.T) {
	digest, _ := query.Digest([]byte("hello"))
	other, _ := query.Digest([]byte("hello!"))
	s, signer := signDigest(t, digest)

	got, err := Secp256k1{}.Recover(other, s)
	if err == nil && got == signer {
		t.Error("recovery over a different digest returned the signer")
	}
}

func TestRecoverRejectsBadRecoveryID(t *testing.T) {
	digest, _ := query.Digest([]byte("hello"))
	s, _ := signDigest(t, digest)

	for _, v := range []byte{2, 4, 27, 255} {
		bad := s
		bad[64] = v

		if _, err := (Secp256k1{}).Recover(digest, bad); !errors.Is(err, qverrors.ErrInvalidSignature) {
			t.Errorf("v=%d: expected ErrInvalidSignature, got %v", v, err)
		}
	}
}

func TestRecoverFlippedParityGivesOtherKey(t *testing.T) {
	digest, _ := query.Digest([]byte("hello"))
	s, signer := signDigest(t, digest)

	s[64] ^= 1

	got, err := Secp256k1{}.Recover(digest, s)
	if err == nil && got == signer {
		t.Error("flipped recovery id recovered the signer")
	}
}

func TestRecoverRejectsOutOfRangeScalars(t *testing.T) {
	digest, _ := query.Digest([]byte("hello"))
	s, _ := signDigest(t, digest)

	zeroR := s
	copy(zeroR[:32], make([]byte, 32))

	bigS := s
	for i := 32; i < 64; i++ {
		bigS[i] = 0xff
	}

	for name, bad := range map[string]sig{"zero r": zeroR, "s >= n": bigS} {
		if _, err := (Secp256k1{}).Recover(digest, bad); !errors.Is(err, qverrors.ErrInvalidSignature) {
			t.Errorf("%s: expected ErrInvalidSignature, got %v", name, err)
		}
	}
}

// wethSignatures are mainnet guardian signatures over the WETH name() response,
// in oracle form hex(r || s || v || index).
var wethSignatures = []string{
	"f122af3db0ae62af57bc16f0b3e79c86cbfc860a5994ca65928c06a739a2f4ca0496c7c1de38350e7b7cdc573fa0b7af981f3ac3d60298d67c76ca99d3bcf1040002",
	"7b9af5d9a3438b5d44e04b7ae8c64894b8ea6a94701bf048bd106a3c79a6d2896843dae20b8db3fea62520565ddaf95a24d77783dfd990f7dc60a1a5c39d16840103",
	"1a86399f16aee73e4aac7d9b06359805a818dd753cd3be77d7934a086f32b6d15d9166fa2d30af365c92bd6a8500c94a377d30a4b64741326f220ea920f4ecc20104",
}

const wethNameResponseHex = "01000051ced87ef0a0bb371964f793bb665a01435d57c9dc79b9fb6f31323f99f557ee0fa583718753cb3b35fe7c2e9bab2afde3f8cfdbeee0432804cb3c9146027a9401000000370100000001010002010000002a0000000930783132346330643601c02aaa39b223fe8d0a0e5c4f27ead9083c756cc20000000406fdde030100020100000095000000000124c0d60f319af73bad19735c2f795e3bf22c0cb3d6be77b5fbd3bc1cf197efdbfb506c000610e4cf31cfc001000000600000000000000000000000000000000000000000000000000000000000000020000000000000000000000000000000000000000000000000000000000000000d5772617070656420457468657200000000000000000000000000000000000000"

func TestRecoverMainnetSignatures(t *testing.T) {
	payload, _ := hex.DecodeString(wethNameResponseHex)
	digest, err := query.Digest(payload)
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}

	seen := make(map[common.Address]bool)
	for i, h := range wethSignatures {
		raw, _ := hex.DecodeString(h)

		var s sig
		copy(s[:], raw[:65])

		addr, err := Secp256k1{}.Recover(digest, s)
		if err != nil {
			t.Fatalf("signature %d: %v", i, err)
		}
		if seen[addr] {
			t.Errorf("signature %d recovered a duplicate key %s", i, addr)
		}
		seen[addr] = true
	}
}

type countingRecoverer struct {
	calls int
	next  Recoverer
}

func (c *countingRecoverer) Recover(d common.Hash, s sig) (common.Address, error) {
	c.calls++
	return c.next.Recover(d, s)
}

func TestCacheMemoizesSuccess(t *testing.T) {
	digest, _ := query.Digest([]byte("cached"))
	s, signer := signDigest(t, digest)

	inner := &countingRecoverer{next: Secp256k1{}}
	c, err := NewCache(inner, 8)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		got, err := c.Recover(digest, s)
		if err != nil || got != signer {
			t.Fatalf("Recover = %s, %v", got, err)
		}
	}

	if inner.calls != 1 {
		t.Errorf("inner recoverer called %d times, want 1", inner.calls)
	}

	hits, misses := c.Stats()
	if hits != 2 || misses != 1 {
		t.Errorf("stats = %d hits, %d misses", hits, misses)
	}
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	digest, _ := query.Digest([]byte("cached"))
	s, _ := signDigest(t, digest)
	s[64] = 9

	inner := &countingRecoverer{next: Secp256k1{}}
	c, _ := NewCache(inner, 8)

	for i := 0; i < 2; i++ {
		if _, err := c.Recover(digest, s); !errors.Is(err, qverrors.ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
	}

	if inner.calls != 2 {
		t.Errorf("failures should reach the inner recoverer every time, got %d calls", inner.calls)
	}
}

func TestCacheKeyBindsSignature(t *testing.T) {
	digest, _ := query.Digest([]byte("k"))

	var a, b sig
	b[64] = 1

	if cacheKey(digest, a) == cacheKey(digest, b) {
		t.Error("cache key ignores the recovery id")
	}
}
