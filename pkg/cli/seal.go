package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/crypto"
)

// NewSealCommand creates the seal command.
func NewSealCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seal",
		Short: "Encrypt a datasource secret read from stdin",
		Long: `Read a secret from the first line of stdin and print it sealed with
CREDENTIALS_KEY. Sealed values ("enc:...") may be used for
DATASOURCE_PASSWORD and DATASOURCE_DSN.`,
		Example: `  printf '%s' "$PASSWORD" | CREDENTIALS_KEY=... ekaya-query-engine seal`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			box, err := crypto.NewSecretBox(os.Getenv("CREDENTIALS_KEY"))
			if err != nil {
				return err
			}

			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			secret := strings.TrimRight(line, "\r\n")
			if err != nil && secret == "" {
				return errors.New("no secret on stdin")
			}

			sealed, err := box.Seal(secret)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	}
}
