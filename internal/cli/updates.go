package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sinaazimii/Wikidata-tools/internal/model"
	"github.com/sinaazimii/Wikidata-tools/internal/wikidata"
)

// windowLayout is the accepted format of --start and --end, in UTC
const windowLayout = "2006-01-02 15:04:05"

// maxWindowAge is how far back the recent-changes feed reaches
const maxWindowAge = 30 * 24 * time.Hour

const maxChanges = 500

var (
	updatesFlags  outputFlags
	updatesLatest bool
	updatesType   string
	updatesNumber int
	updatesEntity string
	updatesStart  string
	updatesEnd    string
)

// updatesCmd represents the updates command
var updatesCmd = &cobra.Command{
	Use:   "updates",
	Short: "Emit update statements for recent Wikidata changes",
	Long: `Updates lists recent edits and entity creations and emits the update
statements for each of them.

Either take the latest changes, or a time window given in UTC as
'YYYY-MM-DD HH:MM:SS'. The window must not reach back more than 30 days
and must not end in the future.

Example:
  wdsync updates --latest -n 20
  wdsync updates --type new -n 5 --file new.ttl
  wdsync updates --start '2026-10-15 08:00:00' --end '2026-10-15 09:00:00'
  wdsync updates --id Q42 -n 3`,
	Args: cobra.NoArgs,
	RunE: runUpdates,
}

func init() {
	rootCmd.AddCommand(updatesCmd)
	updatesFlags.register(updatesCmd)

	updatesCmd.Flags().BoolVarP(&updatesLatest, "latest", "l", false, "take the latest changes")
	updatesCmd.Flags().StringVarP(&updatesType, "type", "t", "edit|new", "change types: edit|new, edit or new")
	updatesCmd.Flags().IntVarP(&updatesNumber, "number", "n", 5, "number of changes (1-500)")
	updatesCmd.Flags().StringVar(&updatesEntity, "id", "", "only changes to this entity")
	updatesCmd.Flags().StringVar(&updatesStart, "start", "", "window start, 'YYYY-MM-DD HH:MM:SS' UTC")
	updatesCmd.Flags().StringVar(&updatesEnd, "end", "", "window end, 'YYYY-MM-DD HH:MM:SS' UTC")
}

func runUpdates(cmd *cobra.Command, args []string) error {
	q, err := buildChangesQuery(updatesLatest, updatesType, updatesNumber, updatesEntity, updatesStart, updatesEnd, time.Now().UTC())
	if err != nil {
		return err
	}

	s, err := newSession(cmd, &updatesFlags)
	if err != nil {
		return err
	}

	window := "latest"
	if !q.Start.IsZero() {
		window = q.Start.Format(windowLayout) + " .. " + q.End.Format(windowLayout)
	}
	entity := updatesEntity
	if entity == "" {
		entity = "any"
	}
	printParameters(cmd.ErrOrStderr(), [][2]string{
		{"window", window},
		{"type", updatesType},
		{"number", strconv.Itoa(q.Limit)},
		{"entity", entity},
		{"mode", updatesFlags.mode},
	})

	ctx, cancel := commandContext(cmd, updatesFlags.timeout)
	defer cancel()

	pairs, err := s.built.Client.RecentChanges(ctx, q)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No changes found.")
		return nil
	}
	return s.run(ctx, cmd, pairs)
}

// buildChangesQuery validates the updates flags against now
func buildChangesQuery(latest bool, types string, number int, entity, start, end string, now time.Time) (wikidata.RecentChangesQuery, error) {
	var q wikidata.RecentChangesQuery

	if number < 1 || number > maxChanges {
		return q, fmt.Errorf("--number must be between 1 and %d", maxChanges)
	}
	q.Limit = number

	kinds, err := parseChangeTypes(types)
	if err != nil {
		return q, err
	}
	q.Types = kinds

	if entity != "" {
		if !model.IsEntityID(entity) {
			return q, fmt.Errorf("invalid entity id %q", entity)
		}
		q.Entity = entity
	}

	hasWindow := start != "" || end != ""
	if latest && hasWindow {
		return q, errors.New("--latest cannot be combined with --start/--end")
	}
	if !hasWindow {
		return q, nil
	}

	q.Start, q.End, err = parseWindow(start, end, now)
	return q, err
}

func parseChangeTypes(s string) ([]model.ChangeKind, error) {
	switch s {
	case "edit|new", "new|edit", "":
		return []model.ChangeKind{model.ChangeEdit, model.ChangeNew}, nil
	case "edit":
		return []model.ChangeKind{model.ChangeEdit}, nil
	case "new":
		return []model.ChangeKind{model.ChangeNew}, nil
	}
	return nil, fmt.Errorf("invalid --type %q (want edit|new, edit or new)", s)
}

// parseWindow checks that both bounds are set, ordered, not in the future
// and within the reach of the feed
func parseWindow(start, end string, now time.Time) (time.Time, time.Time, error) {
	if start == "" || end == "" {
		return time.Time{}, time.Time{}, errors.New("--start and --end must be given together")
	}
	s, err := time.ParseInLocation(windowLayout, start, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --start %q (want YYYY-MM-DD HH:MM:SS)", start)
	}
	e, err := time.ParseInLocation(windowLayout, end, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --end %q (want YYYY-MM-DD HH:MM:SS)", end)
	}

	switch {
	case e.Before(s):
		return time.Time{}, time.Time{}, errors.New("--end is before --start")
	case e.After(now):
		return time.Time{}, time.Time{}, errors.New("--end is in the future")
	case now.Sub(s) > maxWindowAge:
		return time.Time{}, time.Time{}, errors.New("--start is more than 30 days ago")
	}
	return s, e, nil
}
