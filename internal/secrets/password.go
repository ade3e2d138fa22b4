package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService groups hirewire's secrets in the OS keychain.
const KeyringService = "hirewire"

// SMTPPassword returns the keychain entry for account, or fallback when the
// account is empty or has no entry.
func SMTPPassword(account, fallback string) (string, error) {
	if strings.TrimSpace(account) != "" {
		pw, err := keyring.Get(KeyringService, account)
		if err == nil && strings.TrimSpace(pw) != "" {
			return pw, nil
		}
		if err != nil && !errors.Is(err, keyring.ErrNotFound) && fallback == "" {
			return "", fmt.Errorf("read keyring entry %s: %w", account, err)
		}
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", errors.New("SMTP password not found (set it in the keychain or digest.smtp.password)")
}

func SetSMTPPassword(account, password string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, account, password)
}

func DeleteSMTPPassword(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}

// SMTPKeyringAccount is the default account name for a user on an SMTP host.
func SMTPKeyringAccount(username, host string) string {
	return fmt.Sprintf("hirewire:smtp:%s@%s", username, host)
}
