package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sinaazimii/Wikidata-tools/internal/worker"
)

var batchFlags outputFlags

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Emit update statements for revision pairs listed in a file",
	Long: `Batch reads revision pairs from a file and processes them concurrently.

Each line holds an entity id, the old revision and the new revision,
separated by spaces, tabs or commas. Blank lines and lines starting with
# are ignored; duplicate pairs are processed once. The script keeps the
order of the file.

Example:
  wdsync batch pairs.txt
  wdsync batch pairs.txt --workers 8 --file updates.ttl --omit-print`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchFlags.register(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	pairs, err := worker.ReadPairsFromFile(args[0])
	if err != nil {
		return fmt.Errorf("read pairs: %w", err)
	}

	s, err := newSession(cmd, &batchFlags)
	if err != nil {
		return err
	}
	printParameters(cmd.ErrOrStderr(), [][2]string{
		{"input", args[0]},
		{"pairs", strconv.Itoa(len(pairs))},
		{"workers", strconv.Itoa(s.cfg.Concurrency.Workers)},
		{"mode", batchFlags.mode},
	})

	ctx, cancel := commandContext(cmd, batchFlags.timeout)
	defer cancel()
	return s.run(ctx, cmd, pairs)
}
