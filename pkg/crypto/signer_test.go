package crypto

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	eth_crypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	testMnemonic = "test test test test test test test test test test test junk"
	testKeyHex   = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress  = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestGenerateKey(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	if signer.Address() == (common.Address{}) {
		t.Error("generated zero address")
	}

	privHex := signer.PrivateKeyHex()
	if len(privHex) != 64 {
		t.Errorf("private key hex length = %d, want 64", len(privHex))
	}
}

func TestFromPrivateKeyHex(t *testing.T) {
	for _, key := range []string{testKeyHex, testKeyHex[2:], " " + testKeyHex + "\n"} {
		signer, err := FromPrivateKeyHex(key)
		if err != nil {
			t.Fatalf("failed to load key %q: %v", key, err)
		}
		if signer.Address() != common.HexToAddress(testAddress) {
			t.Errorf("address = %s, want %s", signer.Address().Hex(), testAddress)
		}
	}

	if _, err := FromPrivateKeyHex("0x1234"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("error = %v, want ErrInvalidKey", err)
	}
}

func TestFromMnemonic(t *testing.T) {
	signer, err := FromMnemonic(testMnemonic, "")
	if err != nil {
		t.Fatalf("failed to derive key: %v", err)
	}
	if signer.Address() != common.HexToAddress(testAddress) {
		t.Errorf("address = %s, want %s", signer.Address().Hex(), testAddress)
	}
	if "0x"+signer.PrivateKeyHex() != testKeyHex {
		t.Errorf("private key mismatch for default path")
	}

	second, err := FromMnemonic(testMnemonic, "m/44'/60'/0'/0/1")
	if err != nil {
		t.Fatalf("failed to derive second key: %v", err)
	}
	if second.Address() == signer.Address() {
		t.Error("different paths derived the same address")
	}

	if _, err := FromMnemonic("not a real mnemonic", ""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("error = %v, want ErrInvalidKey", err)
	}
	if _, err := FromMnemonic(testMnemonic, "m/bogus"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("error = %v, want ErrInvalidKey", err)
	}
}

func TestSignAndRecover(t *testing.T) {
	signer, _ := GenerateKey()
	hash := eth_crypto.Keccak256([]byte("Test message"))

	signature, err := signer.Sign(hash)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	if len(signature) != 65 {
		t.Errorf("signature length = %d, want 65", len(signature))
	}

	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		t.Fatalf("failed to recover address: %v", err)
	}
	if recovered != signer.Address() {
		t.Errorf("recovered address = %s, want %s", recovered.Hex(), signer.Address().Hex())
	}

	// Same signature with V shifted to 27/28
	shifted := common.CopyBytes(signature)
	shifted[64] += 27
	recovered, err = RecoverAddress(hash, shifted)
	if err != nil {
		t.Fatalf("failed to recover with shifted v: %v", err)
	}
	if recovered != signer.Address() {
		t.Errorf("recovered address = %s, want %s", recovered.Hex(), signer.Address().Hex())
	}
}

func TestSignRejectsShortHash(t *testing.T) {
	signer, _ := GenerateKey()
	if _, err := signer.Sign([]byte("short")); err == nil {
		t.Error("signing a non-32-byte hash should fail")
	}
}

func TestNilSigner(t *testing.T) {
	var signer *Signer
	if signer.Address() != (common.Address{}) {
		t.Errorf("nil signer address = %s, want zero", signer.Address().Hex())
	}
	if _, err := signer.Sign(make([]byte, 32)); !errors.Is(err, ErrNoKey) {
		t.Errorf("error = %v, want ErrNoKey", err)
	}
	if HasKey(signer) {
		t.Error("nil *Signer should not count as a key")
	}
}

func TestSignatureToRSV(t *testing.T) {
	signer, _ := GenerateKey()
	hash := eth_crypto.Keccak256([]byte("RSV test"))
	signature, _ := signer.Sign(hash)

	r, s, v, err := SignatureToRSV(signature)
	if err != nil {
		t.Fatalf("failed to split signature: %v", err)
	}
	if r.Sign() == 0 || s.Sign() == 0 {
		t.Error("r and s should be non-zero")
	}
	if v != signature[64] {
		t.Errorf("v = %d, want %d", v, signature[64])
	}
}

func TestInvalidSignature(t *testing.T) {
	hash := common.BytesToHash([]byte("test")).Bytes()

	if _, err := RecoverAddress(hash, []byte{1, 2, 3}); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("error = %v, want ErrInvalidSignature", err)
	}
	if _, err := RecoverAddress([]byte("short"), make([]byte, 65)); err == nil {
		t.Error("invalid hash should not recover")
	}
	if _, _, _, err := SignatureToRSV(make([]byte, 64)); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("error = %v, want ErrInvalidSignature", err)
	}
}
