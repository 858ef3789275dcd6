package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/yourorg/draftmill/internal/security/crypto"
)

// totpValidateOpts allows one adjacent 30s window of tolerance, standard
// TOTP practice to absorb clock drift between server and authenticator.
var totpValidateOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// TwoFactorSetup is handed back exactly once when 2FA is enabled. The
// plaintext secret is never recoverable after this; only the ciphertext is
// stored.
type TwoFactorSetup struct {
	Secret          string
	ProvisioningURI string
	EncryptedSecret string
}

// TwoFactor generates and checks TOTP codes, encrypting the shared secret
// at rest with the process-wide encryption key.
type TwoFactor struct {
	encryptor *crypto.Encryptor
	issuer    string
}

// NewTwoFactor creates the two-factor helper.
func NewTwoFactor(encryptor *crypto.Encryptor) *TwoFactor {
	return &TwoFactor{encryptor: encryptor, issuer: "draftmill"}
}

// GenerateSecret creates a fresh TOTP secret for the account and returns
// the one-time setup payload plus the ciphertext to persist.
func (tf *TwoFactor) GenerateSecret(accountEmail string) (*TwoFactorSetup, error) {
	if accountEmail == "" {
		return nil, errors.New("account email required")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      tf.issuer,
		AccountName: accountEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate totp secret: %w", err)
	}

	encrypted, err := tf.encryptor.Encrypt(key.Secret())
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt totp secret: %w", err)
	}

	return &TwoFactorSetup{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		EncryptedSecret: encrypted,
	}, nil
}

// VerifyCode decrypts the stored secret and checks the code against the
// current time window (±1 step). The comparison inside the library is
// constant time.
func (tf *TwoFactor) VerifyCode(encryptedSecret, code string) (bool, error) {
	if encryptedSecret == "" {
		return false, errors.New("no totp secret configured")
	}

	secret, err := tf.encryptor.Decrypt(encryptedSecret)
	if err != nil {
		return false, fmt.Errorf("failed to decrypt totp secret: %w", err)
	}

	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totpValidateOpts)
	if err != nil {
		return false, fmt.Errorf("failed to validate totp code: %w", err)
	}
	return ok, nil
}
