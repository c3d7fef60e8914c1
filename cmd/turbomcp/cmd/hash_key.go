package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turbomcp/turbomcp/internal/domain/auth"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [api-key]",
	Short: "Generate an Argon2id hash for an API key",
	Long: `Generate an Argon2id hash of an API key for use in config.

The output is in PHC string format, directly usable in the
auth.api_keys.key_hash field.

Example:
  turbomcp hash-key "my-secret-api-key"
  # Output: $argon2id$v=19$m=47104,t=1,p=1$...

Security note: the key will appear in shell history.
Consider clearing history after use, or pass it via environment variable:
  turbomcp hash-key "$MY_API_KEY"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashKeyArgon2id(args[0])
		if err != nil {
			return fmt.Errorf("hash key: %w", err)
		}
		fmt.Println(hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashKeyCmd)
}
