package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/artepuradesign/apipainellovable/internal/consulta"
)

var searchCmd = &cobra.Command{
	Use:   "search <name or report link>",
	Short: "Run a paid full-name search",
	Long:  "Searches the lookup provider for a full name, or parses a report link pasted from the provider. The search is charged to the session's plan credit first, then its wallet.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		id, err := sessionIdentity(cmd)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		orch, err := env.NewOrchestrator()
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		req := consulta.Request{Raw: strings.Join(args, " "), Identity: id}

		if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
			preview, err := orch.Preview(ctx, req)
			if err != nil {
				return eris.Wrap(err, "search preview")
			}
			if asJSON {
				return writeJSON(os.Stdout, preview)
			}
			formatPreview(os.Stdout, preview)
			return nil
		}

		if !asJSON {
			req.Observer = progressObserver()
		}
		res, runErr := orch.Run(ctx, req)
		// History writes are detached from ctx; let them land before exit.
		orch.Wait()
		if res == nil {
			return runErr
		}

		if asJSON {
			if err := writeJSON(os.Stdout, res); err != nil {
				return err
			}
		} else {
			formatResult(os.Stdout, res)
		}
		if runErr != nil {
			cmd.SilenceUsage = true
			return runErr
		}
		return nil
	},
}

// sessionIdentity resolves the caller from flags, falling back to the
// configured session.
func sessionIdentity(cmd *cobra.Command) (consulta.Identity, error) {
	user, _ := cmd.Flags().GetString("user")
	token, _ := cmd.Flags().GetString("token")
	if user == "" {
		user = cfg.Session.UserID
	}
	if token == "" {
		token = cfg.Session.Token
	}
	if user == "" {
		return consulta.Identity{}, eris.New("user id is required (--user or CONSULTA_SESSION_USER_ID)")
	}
	return consulta.Identity{UserID: user, Token: token}, nil
}

// progressObserver prints the steps a user waits on to stderr.
func progressObserver() consulta.Observer {
	return consulta.ObserverFuncs{
		Transition: func(_, to consulta.State) {
			switch to {
			case consulta.StateDispatching:
				fmt.Fprintln(os.Stderr, "Searching...")
			case consulta.StateFetchingFallback:
				fmt.Fprintln(os.Stderr, "Opening report link...")
			}
		},
	}
}

func init() {
	searchCmd.Flags().String("user", "", "user id (default from session config)")
	searchCmd.Flags().String("token", "", "session bearer token (default from session config)")
	searchCmd.Flags().Bool("dry-run", false, "show the price and balance without searching")
	searchCmd.Flags().Bool("json", false, "print the result as JSON")
	rootCmd.AddCommand(searchCmd)
}
