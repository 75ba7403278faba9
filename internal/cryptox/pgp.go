package cryptox

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
)

// DefaultRSABits is the modulus size for newly generated source keys.
const DefaultRSABits = 4096

// MinRSABits is the smallest modulus the OpenPGP library will encrypt to.
const MinRSABits = 2048

const sourceKeyName = "Source Key"

// Keypair is a freshly generated OpenPGP key. Public is ASCII armored,
// Private is the binary transferable secret key.
type Keypair struct {
	Public  string
	Private []byte
}

// GenerateKeypair creates an RSA OpenPGP key for a source. The key carries
// no passphrase; callers seal Private before persisting it.
func GenerateKeypair(bits int) (*Keypair, error) {
	if bits <= 0 {
		bits = DefaultRSABits
	}
	if bits < MinRSABits {
		return nil, fmt.Errorf("rsa key size %d is below %d bits", bits, MinRSABits)
	}
	cfg := &packet.Config{Algorithm: packet.PubKeyAlgoRSA, RSABits: bits}

	entity, err := openpgp.NewEntity(sourceKeyName, "", "", cfg)
	if err != nil {
		return nil, err
	}

	var priv bytes.Buffer
	if err := entity.SerializePrivate(&priv, cfg); err != nil {
		return nil, err
	}

	var pub bytes.Buffer
	w, err := armor.Encode(&pub, openpgp.PublicKeyType, nil)
	if err != nil {
		return nil, err
	}
	if err := entity.Serialize(w); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return &Keypair{Public: pub.String(), Private: priv.Bytes()}, nil
}

// ReadPrivateKey parses a binary secret key produced by GenerateKeypair.
func ReadPrivateKey(private []byte) (openpgp.EntityList, error) {
	keys, err := openpgp.ReadKeyRing(bytes.NewReader(private))
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, errors.New("no keys in keyring")
	}
	return keys, nil
}

// Encrypt produces a binary OpenPGP message for the holder of the armored
// public key.
func Encrypt(publicKey string, plaintext []byte) ([]byte, error) {
	to, err := openpgp.ReadArmoredKeyRing(bytes.NewBufferString(publicKey))
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	w, err := openpgp.Encrypt(&out, to, nil, &openpgp.FileHints{IsBinary: true}, nil)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}

// Decrypt opens a binary or armored OpenPGP message with keys. Messages
// without an integrity check, or whose check fails, are rejected.
func Decrypt(keys openpgp.EntityList, ciphertext []byte) ([]byte, error) {
	var r io.Reader = bytes.NewReader(ciphertext)
	if block, err := armor.Decode(bytes.NewReader(ciphertext)); err == nil {
		r = block.Body
	}

	md, err := openpgp.ReadMessage(r, keys, nil, nil)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(md.UnverifiedBody)
}
