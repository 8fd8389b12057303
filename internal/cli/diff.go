package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sinaazimii/Wikidata-tools/internal/model"
)

var diffFlags outputFlags

// diffCmd represents the diff command
var diffCmd = &cobra.Command{
	Use:   "diff <entity> <old-revid> <new-revid>",
	Short: "Emit the update statements between two revisions of one entity",
	Long: `Diff fetches two revisions of an entity and prints the SPARQL update
statements that turn the old revision into the new one.

An old revision of 0 treats the entity as newly created.

Example:
  wdsync diff Q42 1234567 1234570
  wdsync diff Q42 0 1234570 --file q42.ttl
  wdsync diff Q42 1234567 1234570 --mode compare`,
	Args: cobra.ExactArgs(3),
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
	diffFlags.register(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	pair, err := pairFromArgs(args)
	if err != nil {
		return err
	}

	s, err := newSession(cmd, &diffFlags)
	if err != nil {
		return err
	}
	printParameters(cmd.ErrOrStderr(), [][2]string{
		{"entity", pair.EntityID},
		{"old_revid", strconv.FormatInt(pair.OldRevID, 10)},
		{"new_revid", strconv.FormatInt(pair.NewRevID, 10)},
		{"mode", diffFlags.mode},
	})

	ctx, cancel := commandContext(cmd, diffFlags.timeout)
	defer cancel()
	return s.run(ctx, cmd, []model.RevisionPair{pair})
}

// pairFromArgs parses <entity> <old-revid> <new-revid>
func pairFromArgs(args []string) (model.RevisionPair, error) {
	oldRev, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return model.RevisionPair{}, fmt.Errorf("invalid old revision %q", args[1])
	}
	newRev, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return model.RevisionPair{}, fmt.Errorf("invalid new revision %q", args[2])
	}

	pair := model.RevisionPair{EntityID: args[0], OldRevID: oldRev, NewRevID: newRev, Kind: model.ChangeEdit}
	if pair.IsNew() {
		pair.Kind = model.ChangeNew
	}
	if err := pair.Validate(); err != nil {
		return model.RevisionPair{}, err
	}
	return pair, nil
}
