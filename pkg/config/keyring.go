package config

import (
	"fmt"
	"io"
	"os"

	"github.com/99designs/keyring"
	"golang.org/x/term"
)

const (
	keyringServiceName = "com.github.jsalmi.mytgo"
	keyringPasswordKey = "account-password"
)

func (c *Config) keyringConfig() keyring.Config {
	return keyring.Config{
		ServiceName:              keyringServiceName,
		KeychainTrustApplication: true,
		KeyCtlScope:              "user",
		FileDir:                  "~/.mytgo_keys",
		FilePasswordFunc:         c.promptPassword,
		KeychainPasswordFunc:     c.promptPassword,
	}
}

func (c *Config) promptPassword(prompt string) (string, error) {
	if c.KeyringPassword != "" {
		return c.KeyringPassword, nil
	}
	var w io.Writer
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		fd = int(os.Stderr.Fd())
		if !term.IsTerminal(fd) {
			return "", fmt.Errorf("no terminal available for password prompt")
		}
		w = os.Stderr
	} else {
		w = os.Stdout
	}
	fmt.Fprintf(w, "%s: ", prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(w)
	c.KeyringPassword = string(b)
	return c.KeyringPassword, nil
}

// ResolvePassword fills in c.Password from the system keyring when the
// config file and environment did not provide one. A password already
// present wins; the keyring is never consulted in that case.
func (c *Config) ResolvePassword() error {
	if c.Password != "" {
		return nil
	}
	kr, err := keyring.Open(c.keyringConfig())
	if err != nil {
		return fmt.Errorf("opening keyring: %w", err)
	}
	item, err := kr.Get(keyringPasswordKey + "." + c.Username)
	if err != nil {
		return fmt.Errorf("could not load account password: %w", err)
	}
	c.Password = string(item.Data)
	return nil
}

// SavePasswordToKeyring stores the account password in the system
// keyring under the configured username.
func (c *Config) SavePasswordToKeyring(password string) error {
	kr, err := keyring.Open(c.keyringConfig())
	if err != nil {
		return fmt.Errorf("opening keyring: %w", err)
	}
	if err := kr.Set(keyring.Item{
		Key:  keyringPasswordKey + "." + c.Username,
		Data: []byte(password),
	}); err != nil {
		return fmt.Errorf("failed to enroll password in keyring: %w", err)
	}
	return nil
}
