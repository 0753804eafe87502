package crypto

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/pqgate/pqgate/internal/constants"
)

func TestBufferPoolNonce(t *testing.T) {
	pool := NewBufferPool()

	nonce := pool.GetNonce()
	if len(nonce) != constants.AESNonceSize {
		t.Errorf("nonce length = %d, want %d", len(nonce), constants.AESNonceSize)
	}
	for i, b := range nonce {
		if b != 0 {
			t.Errorf("nonce[%d] = %#x, want 0", i, b)
		}
	}
	pool.PutNonce(nonce)

	// Wrong capacity buffers are dropped, not pooled.
	pool.PutNonce(make([]byte, 16))
	pool.PutNonce(nil)
}

func TestBufferPoolCiphertext(t *testing.T) {
	pool := NewBufferPool()

	cases := []struct {
		name    string
		size    int
		wantCap int
	}{
		{"Small", 100, smallCryptoBufferSize},
		{"SmallBoundary", smallCryptoBufferSize, smallCryptoBufferSize},
		{"Medium", 8 * 1024, mediumCryptoBufferSize},
		{"Large", 32 * 1024, largeCryptoBufferSize},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := pool.GetCiphertext(tc.size)
			if len(buf) != tc.size {
				t.Errorf("len = %d, want %d", len(buf), tc.size)
			}
			if cap(buf) != tc.wantCap {
				t.Errorf("cap = %d, want %d", cap(buf), tc.wantCap)
			}
			pool.PutCiphertext(buf)
		})
	}

	t.Run("Oversized", func(t *testing.T) {
		size := largeCryptoBufferSize + 1
		buf := pool.GetCiphertext(size)
		if len(buf) != size || cap(buf) != size {
			t.Errorf("len, cap = %d, %d, want %d, %d", len(buf), cap(buf), size, size)
		}
		// Non-standard capacity; PutCiphertext drops it silently.
		pool.PutCiphertext(buf)
	})

	t.Run("Zero", func(t *testing.T) {
		if buf := pool.GetCiphertext(0); buf != nil {
			t.Errorf("GetCiphertext(0) = %v, want nil", buf)
		}
		if buf := pool.GetCiphertext(-5); buf != nil {
			t.Errorf("GetCiphertext(-5) = %v, want nil", buf)
		}
	})
}

func TestBufferPoolWipeOnReturn(t *testing.T) {
	pool := NewBufferPool()

	buf := pool.GetCiphertext(64)
	for i := range buf {
		buf[i] = 0xee
	}
	backing := buf[:cap(buf)]

	pool.PutCiphertext(buf)
	for i, b := range backing {
		if b != 0 {
			t.Fatalf("backing[%d] = %#x after return, want 0", i, b)
		}
	}
}

func TestSealPooled(t *testing.T) {
	a, err := NewAEAD(constants.CipherSuiteAES256GCM, testAEADKey(t))
	if err != nil {
		t.Fatalf("NewAEAD failed: %v", err)
	}

	plaintext := []byte("pooled path must match the plain path")
	aad := []byte("frame")

	sealed, err := a.SealPooled(plaintext, aad)
	if err != nil {
		t.Fatalf("SealPooled failed: %v", err)
	}
	defer PutCryptoBuffer(sealed)

	if len(sealed) != len(plaintext)+a.Overhead() {
		t.Errorf("sealed length = %d, want %d", len(sealed), len(plaintext)+a.Overhead())
	}

	opened, err := a.Open(sealed, aad)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Error("roundtrip plaintext mismatch")
	}
}

func BenchmarkSeal(b *testing.B) {
	key := make([]byte, constants.AESKeySize)
	for i := range key {
		key[i] = byte(i)
	}

	for _, size := range []int{1024, 16 * 1024} {
		plaintext := make([]byte, size)

		b.Run(fmt.Sprintf("NonPooled_%d", size), func(b *testing.B) {
			a, err := NewAEAD(constants.CipherSuiteAES256GCM, key)
			if err != nil {
				b.Fatalf("NewAEAD failed: %v", err)
			}
			b.ReportAllocs()
			b.SetBytes(int64(size))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				ct, err := a.Seal(plaintext, nil)
				if err != nil {
					b.Fatal(err)
				}
				_ = ct
				if a.NeedsRekey() {
					_ = a.SetCounter(0)
				}
			}
		})

		b.Run(fmt.Sprintf("Pooled_%d", size), func(b *testing.B) {
			a, err := NewAEAD(constants.CipherSuiteAES256GCM, key)
			if err != nil {
				b.Fatalf("NewAEAD failed: %v", err)
			}
			b.ReportAllocs()
			b.SetBytes(int64(size))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				ct, err := a.SealPooled(plaintext, nil)
				if err != nil {
					b.Fatal(err)
				}
				PutCryptoBuffer(ct)
				if a.NeedsRekey() {
					_ = a.SetCounter(0)
				}
			}
		})
	}
}

func BenchmarkBufferPoolGetPut(b *testing.B) {
	pool := NewBufferPool()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf := pool.GetCiphertext(1024)
		pool.PutCiphertext(buf)
	}
}

func BenchmarkMakeBaseline(b *testing.B) {
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf := make([]byte, 1024)
		_ = buf
	}
}
