package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/artepuradesign/apipainellovable/internal/consulta"
	"github.com/artepuradesign/apipainellovable/internal/history"
	"github.com/artepuradesign/apipainellovable/internal/model"
	"github.com/artepuradesign/apipainellovable/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect search history",
	Long:  "Commands for listing, summarizing, viewing, replaying and importing recorded searches.",
}

// openHistory opens the store and a reconciler scoped to the search route.
// Callers should close the returned store.
func openHistory(ctx context.Context) (store.Store, *history.Reconciler, error) {
	if err := cfg.Validate("history"); err != nil {
		return nil, nil, err
	}
	st, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return st, history.NewReconciler(st, cfg.Consulta.RouteKey,
		history.WithPageSize(cfg.History.PageSize)), nil
}

// historyUser returns the --user flag, or the session user. Empty means every
// user.
func historyUser(cmd *cobra.Command) string {
	user, _ := cmd.Flags().GetString("user")
	if user == "" {
		user = cfg.Session.UserID
	}
	return user
}

// -- history list --

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent searches",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, rec, err := openHistory(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		recs, err := rec.LoadRecent(ctx, historyUser(cmd), limit)
		if err != nil {
			return eris.Wrap(err, "history list")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, recs)
		}
		if len(recs) == 0 {
			fmt.Fprintln(os.Stderr, "No searches found.")
			return nil
		}
		formatHistory(os.Stdout, recs)
		return nil
	},
}

// -- history stats --

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize search history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, rec, err := openHistory(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := rec.Stats(ctx, historyUser(cmd))
		if err != nil {
			return eris.Wrap(err, "history stats")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, stats)
		}
		formatStats(os.Stdout, stats)
		return nil
	},
}

// -- history show --

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the stored record of a search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, rec, err := openHistory(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		r, err := rec.Get(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "history show")
		}
		return writeJSON(os.Stdout, r)
	},
}

// -- history replay --

var historyReplayCmd = &cobra.Command{
	Use:   "replay <id>",
	Short: "Show a past search's results again without charging",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, rec, err := openHistory(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		r, err := rec.Get(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "history replay")
		}
		res, err := consulta.Replay(r)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, res)
		}
		formatResult(os.Stdout, res)
		return nil
	},
}

// -- history import --

var historyImportCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Import history records exported as JSON lines",
	Long:  "Reads one JSON history record per line and inserts those whose id is not already stored. Re-running an import is a no-op.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrap(err, "history import: open file")
		}
		defer f.Close() //nolint:errcheck

		recs, err := readRecords(f)
		if err != nil {
			return err
		}

		st, _, err := openHistory(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		inserted, err := st.ImportConsultations(ctx, recs)
		if err != nil {
			return eris.Wrap(err, "history import")
		}

		zap.L().Info("history import complete",
			zap.String("file", args[0]),
			zap.Int("read", len(recs)),
			zap.Int("inserted", inserted),
		)
		fmt.Fprintf(os.Stdout, "Imported %d of %d records (%d already present).\n",
			inserted, len(recs), len(recs)-inserted)
		return nil
	},
}

// readRecords decodes a stream of JSON history records. Records without an
// id or user are rejected; they could never be deduplicated or listed.
func readRecords(r io.Reader) ([]model.ConsultationRecord, error) {
	dec := json.NewDecoder(r)
	var recs []model.ConsultationRecord
	for n := 1; dec.More(); n++ {
		var rec model.ConsultationRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, eris.Wrapf(err, "history import: record %d", n)
		}
		if rec.ID == "" || rec.UserID == "" {
			return nil, eris.Errorf("history import: record %d: id and user_id are required", n)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func init() {
	for _, c := range []*cobra.Command{historyListCmd, historyStatsCmd} {
		c.Flags().String("user", "", "user id (default from session config, empty for all users)")
	}
	historyListCmd.Flags().Int("limit", 20, "max number of searches to display (0 for all)")
	for _, c := range []*cobra.Command{historyListCmd, historyStatsCmd, historyReplayCmd} {
		c.Flags().Bool("json", false, "print as JSON")
	}

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyStatsCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyReplayCmd)
	historyCmd.AddCommand(historyImportCmd)
	rootCmd.AddCommand(historyCmd)
}
