// Command repobrief-keys manages API keys and stored service credentials in
// the repobrief database.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	sqliteadapter "github.com/ericfisherdev/repobrief/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/repobrief/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "repobrief-keys",
		Short:        "Manage repobrief API keys and stored credentials",
		SilenceUsage: true,
	}

	root.AddCommand(keysCmd(), credentialsCmd())
	return root
}

// stores bundles the repositories a subcommand works on.
type stores struct {
	db          *sqliteadapter.DB
	keys        *sqliteadapter.APIKeyRepo
	credentials *sqliteadapter.CredentialRepo
}

// openStores loads configuration, opens the database and applies migrations.
func openStores(ctx context.Context) (*stores, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	if _, err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}

	creds, err := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &stores{
		db:          db,
		keys:        sqliteadapter.NewAPIKeyRepo(db),
		credentials: creds,
	}, nil
}

// withStores runs fn with open stores and closes them afterwards.
func withStores(cmd *cobra.Command, fn func(ctx context.Context, s *stores) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.db.Close() }()

	return fn(ctx, s)
}

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys accepted by the summarizer endpoint",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create [name]",
			Short: "Issue a new API key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStores(cmd, func(ctx context.Context, s *stores) error {
					key, err := s.keys.Create(ctx, args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Created key %d (%s)\n%s\n", key.ID, key.Name, key.Value)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List issued API keys",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withStores(cmd, func(ctx context.Context, s *stores) error {
					keys, err := s.keys.List(ctx)
					if err != nil {
						return err
					}

					tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tNAME\tKEY\tCREATED")
					for _, k := range keys {
						fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", k.ID, k.Name, maskKey(k.Value), k.CreatedAt.Format(time.RFC3339))
					}
					return tw.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "rename [id] [name]",
			Short: "Rename an API key",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return withStores(cmd, func(ctx context.Context, s *stores) error {
					if err := s.keys.Rename(ctx, id, args[1]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Renamed key %d to %s\n", id, args[1])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "delete [id]",
			Short: "Revoke an API key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return withStores(cmd, func(ctx context.Context, s *stores) error {
					if err := s.keys.Delete(ctx, id); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted key %d\n", id)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "validate [value]",
			Short: "Check whether a key value is accepted",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStores(cmd, func(ctx context.Context, s *stores) error {
					valid, err := s.keys.Validate(ctx, args[0])
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatBool(valid))
					return nil
				})
			},
		},
	)

	return cmd
}

func credentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage encrypted upstream credentials (requires REPOBRIEF_SECRET_KEY)",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set [service] [key] [value]",
			Short: "Store a credential, e.g. github token or openai api_key",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStores(cmd, func(ctx context.Context, s *stores) error {
					if err := s.credentials.Set(ctx, args[0], args[1], args[2]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Stored %s/%s\n", args[0], args[1])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List stored credentials with masked values",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withStores(cmd, func(ctx context.Context, s *stores) error {
					creds, err := s.credentials.List(ctx)
					if err != nil {
						return err
					}

					tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "SERVICE\tKEY\tVALUE\tUPDATED")
					for _, c := range creds {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Service, c.Key, maskKey(c.Value), c.UpdatedAt.Format(time.RFC3339))
					}
					return tw.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "delete [service] [key]",
			Short: "Remove a stored credential",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStores(cmd, func(ctx context.Context, s *stores) error {
					if err := s.credentials.Delete(ctx, args[0], args[1]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s/%s\n", args[0], args[1])
					return nil
				})
			},
		},
	)

	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid key id %q", s)
	}
	return id, nil
}

// maskKey shows only the last four characters of a secret.
func maskKey(v string) string {
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}
