package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"guardian/internal/tokencipher"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage service secrets",
}

var secretGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a random hex secret for SIGNING_KEY or PAIRING_SECRET",
	Long: `Generate a random hex secret.

The pairing cipher keys AES-256 with the first 32 bytes of PAIRING_SECRET, so
any output of this command is long enough.

Example:

$ export PAIRING_SECRET="$(guardianctl secret generate)"
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("bytes")
		if n < tokencipher.KeySize {
			return fmt.Errorf("--bytes must be at least %d, got %d", tokencipher.KeySize, n)
		}
		b, err := tokencipher.RandomSecret(n)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(b))
		return nil
	},
}

func init() {
	secretGenerateCmd.Flags().Int("bytes", 32, "number of random bytes")
	secretCmd.AddCommand(secretGenerateCmd)
	rootCmd.AddCommand(secretCmd)
}
