package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/hirewire/internal/config"
	"github.com/amishk599/hirewire/internal/secrets"
)

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Manage credentials kept in the OS keychain",
}

var setSMTPCmd = &cobra.Command{
	Use:   "set-smtp",
	Short: "Store the SMTP digest password in the keychain",
	Long:  "Reads the password from the first line of stdin and stores it under the account derived from digest.smtp (keyring_account, or username@host).",
	RunE:  runSetSMTP,
}

var deleteSMTPCmd = &cobra.Command{
	Use:   "delete-smtp",
	Short: "Remove the SMTP digest password from the keychain",
	RunE:  runDeleteSMTP,
}

func init() {
	rootCmd.AddCommand(secretsCmd)
	secretsCmd.AddCommand(setSMTPCmd, deleteSMTPCmd)
}

// smtpAccount names the keychain entry for the configured SMTP login.
func smtpAccount(sc config.SMTPConfig) string {
	if sc.KeyringAccount != "" {
		return sc.KeyringAccount
	}
	if sc.Username == "" {
		return ""
	}
	return secrets.SMTPKeyringAccount(sc.Username, sc.Host)
}

func runSetSMTP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	account := smtpAccount(cfg.Digest.SMTP)
	if account == "" {
		return errors.New("digest.smtp.username or digest.smtp.keyring_account must be set")
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "SMTP password for %s: ", account)
	password, err := readLine(cmd.InOrStdin())
	if err != nil {
		return err
	}
	if err := secrets.SetSMTPPassword(account, password); err != nil {
		return fmt.Errorf("store keyring entry %s: %w", account, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stored SMTP password for %s\n", account)
	return nil
}

func runDeleteSMTP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	account := smtpAccount(cfg.Digest.SMTP)
	if err := secrets.DeleteSMTPPassword(account); err != nil {
		return fmt.Errorf("delete keyring entry %s: %w", account, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted SMTP password for %s\n", account)
	return nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
