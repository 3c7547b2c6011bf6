package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jcieslar/webhooks/internal/courier"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file|->",
	Short: "Reconcile one captured webhook payload",
	Long: `Read a courier notification body from a file, or from stdin when the
argument is "-", and apply it exactly as POST /webhooks/orders would.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	body, err := readPayload(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	ev, err := courier.Parse(body)
	if err != nil {
		return err
	}

	a, err := loadApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	result, err := a.engine.Reconcile(cmd.Context(), ev)
	if err != nil {
		return fmt.Errorf("reconciling %s: %w", ev.Identifier, err)
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func readPayload(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		body, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return body, nil
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	return body, nil
}
