package keychain

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const serviceName = "pollbot"

// ErrNotFound is returned when no secret is stored for an account.
var ErrNotFound = keyring.ErrNotFound

// Get retrieves a bot token from the system keychain.
func Get(account string) (string, error) {
	secret, err := keyring.Get(serviceName, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("keychain account %q: %w", account, ErrNotFound)
		}
		return "", fmt.Errorf("read keychain account %q: %w", account, err)
	}
	return secret, nil
}

// Set stores a bot token in the system keychain.
func Set(account, value string) error {
	if err := keyring.Set(serviceName, account, value); err != nil {
		return fmt.Errorf("write keychain account %q: %w", account, err)
	}
	return nil
}
