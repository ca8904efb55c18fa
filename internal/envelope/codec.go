// Package envelope builds and parses the signed+encrypted JOSE tokens
// exchanged with the bank. Outbound payloads are signed with the merchant
// private key and encrypted to the bank's public key; inbound tokens are
// decrypted with the merchant private key and verified against the bank's
// signing key.
package envelope

import (
	"crypto/rsa"
	"encoding/json"

	jose "gopkg.in/square/go-jose.v2"

	"github.com/novandria/bankgateway/internal"
)

// Codec seals and opens nested JWS-inside-JWE compact tokens.
type Codec struct {
	signingKey      *rsa.PrivateKey
	encryptionKey   *rsa.PublicKey
	decryptionKey   *rsa.PrivateKey
	verificationKey *rsa.PublicKey
}

func NewCodec(signingKey *rsa.PrivateKey, encryptionKey *rsa.PublicKey, decryptionKey *rsa.PrivateKey, verificationKey *rsa.PublicKey) *Codec {
	return &Codec{
		signingKey:      signingKey,
		encryptionKey:   encryptionKey,
		decryptionKey:   decryptionKey,
		verificationKey: verificationKey,
	}
}

// NewCodecFromConfig parses the four PEM keys from the gateway configuration.
// Any parse failure is a KEY_CONFIGURATION_ERROR.
func NewCodecFromConfig(cfg internal.GatewayConfig) (*Codec, error) {
	signingKey, err := cfg.GetSigningKey()
	if err != nil {
		return nil, err
	}
	decryptionKey, err := cfg.GetDecryptionKey()
	if err != nil {
		return nil, err
	}
	verificationKey, err := cfg.GetBankVerificationKey()
	if err != nil {
		return nil, err
	}
	encryptionKey, err := cfg.GetBankEncryptionKey()
	if err != nil {
		return nil, err
	}
	return NewCodec(signingKey, encryptionKey, decryptionKey, verificationKey), nil
}

// Seal serializes the payload to JSON, signs it, then encrypts the compact
// signature, producing a single compact token.
func (c *Codec) Seal(payload interface{}) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", internal.NewInternalError("failed to serialize payload", err)
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: c.signingKey},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", internal.NewKeyConfigurationError("failed to construct signer", err)
	}

	jws, err := signer.Sign(raw)
	if err != nil {
		return "", internal.NewInternalError("failed to sign payload", err)
	}

	signed, err := jws.CompactSerialize()
	if err != nil {
		return "", internal.NewInternalError("failed to serialize signature", err)
	}

	encrypter, err := jose.NewEncrypter(
		jose.A128CBC_HS256,
		jose.Recipient{Algorithm: jose.RSA_OAEP, Key: c.encryptionKey},
		(&jose.EncrypterOptions{}).WithType("JWT").WithContentType("JWT"),
	)
	if err != nil {
		return "", internal.NewKeyConfigurationError("failed to construct encrypter", err)
	}

	jwe, err := encrypter.Encrypt([]byte(signed))
	if err != nil {
		return "", internal.NewInternalError("failed to encrypt payload", err)
	}

	token, err := jwe.CompactSerialize()
	if err != nil {
		return "", internal.NewInternalError("failed to serialize token", err)
	}

	return token, nil
}

// Open decrypts the token, verifies the inner signature and unmarshals the
// payload into out. Parse and decrypt failures are MALFORMED_TOKEN;
// signature failures are INTEGRITY_ERROR so callers can tell tampering
// apart from transport corruption.
func (c *Codec) Open(token string, out interface{}) error {
	jwe, err := jose.ParseEncrypted(token)
	if err != nil {
		return internal.NewMalformedTokenError("token cannot be parsed", err)
	}

	signed, err := jwe.Decrypt(c.decryptionKey)
	if err != nil {
		return internal.NewMalformedTokenError("token cannot be decrypted", err)
	}

	jws, err := jose.ParseSigned(string(signed))
	if err != nil {
		return internal.NewMalformedTokenError("decrypted payload is not a valid signature", err)
	}

	payload, err := jws.Verify(c.verificationKey)
	if err != nil {
		return internal.NewIntegrityError("signature verification failed", err)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return internal.NewMalformedTokenError("payload is not valid JSON", err)
	}

	return nil
}
