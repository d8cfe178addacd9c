package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/scrypt"
)

const (
	keystoreVersion = 1
	scryptN         = 1 << 15
	scryptR         = 8
	scryptP         = 1
	scryptKeyLen    = 32
)

type keystoreFile struct {
	Version    int    `json:"version"`
	Address    string `json:"address"`
	KDF        string `json:"kdf"`
	Salt       string `json:"salt"`
	N          int    `json:"n"`
	R          int    `json:"r"`
	P          int    `json:"p"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// SaveToKeystore encrypts the key seed with a scrypt-derived AES-GCM key and
// writes it to path. If the parent directory does not exist it will be created
// with 0700 permissions.
func SaveToKeystore(path string, key *PrivateKey, passphrase string) error {
	if key == nil {
		return errors.New("crypto: nil private key")
	}
	if path == "" {
		return errors.New("crypto: empty keystore path")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	aead, err := keystoreCipher(passphrase, salt, scryptN, scryptR, scryptP)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	addr := key.Address()
	sealed := aead.Seal(nil, nonce, key.Bytes(), addr[:])

	payload, err := json.MarshalIndent(keystoreFile{
		Version:    keystoreVersion,
		Address:    addr.String(),
		KDF:        "scrypt",
		Salt:       hex.EncodeToString(salt),
		N:          scryptN,
		R:          scryptR,
		P:          scryptP,
		Nonce:      hex.EncodeToString(nonce),
		Ciphertext: hex.EncodeToString(sealed),
	}, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "keystore-")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

// LoadFromKeystore decrypts a keystore file written by SaveToKeystore.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty keystore path")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file keystoreFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("crypto: decode keystore: %w", err)
	}
	if file.Version != keystoreVersion || file.KDF != "scrypt" {
		return nil, fmt.Errorf("crypto: unsupported keystore version %d (%s)", file.Version, file.KDF)
	}
	addr, err := DecodeAddress(file.Address)
	if err != nil {
		return nil, err
	}
	salt, err := hex.DecodeString(file.Salt)
	if err != nil {
		return nil, fmt.Errorf("crypto: keystore salt: %w", err)
	}
	nonce, err := hex.DecodeString(file.Nonce)
	if err != nil {
		return nil, fmt.Errorf("crypto: keystore nonce: %w", err)
	}
	sealed, err := hex.DecodeString(file.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("crypto: keystore ciphertext: %w", err)
	}
	aead, err := keystoreCipher(passphrase, salt, file.N, file.R, file.P)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, errors.New("crypto: keystore nonce has wrong size")
	}
	seed, err := aead.Open(nil, nonce, sealed, addr[:])
	if err != nil {
		return nil, errors.New("crypto: could not decrypt keystore (wrong passphrase?)")
	}
	key, err := PrivateKeyFromBytes(seed)
	if err != nil {
		return nil, err
	}
	if key.Address() != addr {
		return nil, errors.New("crypto: keystore address mismatch")
	}
	return key, nil
}

func keystoreCipher(passphrase string, salt []byte, n, r, p int) (cipher.AEAD, error) {
	derived, err := scrypt.Key([]byte(passphrase), salt, n, r, p, scryptKeyLen)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
