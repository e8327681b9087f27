package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"guardian/internal/config"
	"guardian/internal/tokencipher"
)

var pairingKeyCmd = &cobra.Command{
	Use:   "pairing-key",
	Short: "Encrypt or decrypt child pairing keys with PAIRING_SECRET",
}

var pairingKeyEncryptCmd = &cobra.Command{
	Use:   "encrypt <plaintext>",
	Short: "Encrypt a pairing plaintext such as <accountId>|<username>",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := pairingCipher()
		if err != nil {
			return err
		}
		token, err := c.Encrypt(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var pairingKeyDecryptCmd = &cobra.Command{
	Use:   "decrypt <token>",
	Short: "Decrypt a pairing key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := pairingCipher()
		if err != nil {
			return err
		}
		plain, err := c.Decrypt(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), plain)
		return nil
	},
}

func pairingCipher() (*tokencipher.Cipher, error) {
	secret := config.LoadLenient().PairingSecret
	if secret == "" {
		return nil, errors.New("PAIRING_SECRET environment variable is required")
	}
	return tokencipher.New([]byte(secret))
}

func init() {
	pairingKeyCmd.AddCommand(pairingKeyEncryptCmd, pairingKeyDecryptCmd)
	rootCmd.AddCommand(pairingKeyCmd)
}
