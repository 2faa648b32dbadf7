// resellerctl служебные операции бота без чата: импорт, удаление клиента,
// проверка базы, ключи лицензии, токены вебхука, миграции.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/streaming-reseller/internal/config"
	"github.com/magabrotheeeer/streaming-reseller/internal/lib/jwt"
	"github.com/magabrotheeeer/streaming-reseller/internal/lib/normalize"
	"github.com/magabrotheeeer/streaming-reseller/internal/lib/sl"
	"github.com/magabrotheeeer/streaming-reseller/internal/migrations"
	"github.com/magabrotheeeer/streaming-reseller/internal/models"
	"github.com/magabrotheeeer/streaming-reseller/internal/services/importer"
	"github.com/magabrotheeeer/streaming-reseller/internal/services/license"
	"github.com/magabrotheeeer/streaming-reseller/internal/storage/repository"
)

// Store операции хранилища, нужные командам.
type Store interface {
	importer.Repository
	license.Repository
	GetClientByPhone(ctx context.Context, phone string) (*models.Client, error)
	DeleteClient(ctx context.Context, id int64) error
	Ready(ctx context.Context) error
	Close() error
}

type pgStore struct {
	*repository.Storage
}

func (s pgStore) Ready(ctx context.Context) error {
	return repository.CheckDatabaseReady(ctx, s.Storage)
}

// deps точки подмены для тестов.
type deps struct {
	loadConfig func(path string) (*config.Config, error)
	openStore  func(cfg *config.Config) (Store, error)
	migrate    func(cfg *config.Config) error
}

func defaultDeps() deps {
	return deps{
		loadConfig: config.Load,
		openStore: func(cfg *config.Config) (Store, error) {
			db, err := repository.New(cfg.StorageConnectionString)
			if err != nil {
				return nil, err
			}
			return pgStore{db}, nil
		},
		migrate: func(cfg *config.Config) error {
			db, err := repository.New(cfg.StorageConnectionString)
			if err != nil {
				return err
			}
			defer db.Close()
			return migrations.Run(db.DB, cfg.MigrationsPath)
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(defaultDeps()).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type cli struct {
	deps       deps
	configPath string
	cfg        *config.Config
	log        *slog.Logger
}

func newRootCmd(d deps) *cobra.Command {
	c := &cli{deps: d}
	root := &cobra.Command{
		Use:           "resellerctl",
		Short:         "Streaming reseller bot administration",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path := c.configPath
			if path == "" {
				path = os.Getenv("CONFIG_PATH")
			}
			if path == "" {
				return errors.New("config path is not set: use --config or CONFIG_PATH")
			}
			cfg, err := c.deps.loadConfig(path)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.log = sl.SetupLogger(cfg.Env, cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to config file (default $CONFIG_PATH)")

	root.AddCommand(
		c.importCmd(),
		c.deleteCmd(),
		c.checkCmd(),
		c.genkeyCmd(),
		c.tokenCmd(),
		c.migrateCmd(),
	)
	return root
}

func (c *cli) withStore(fn func(Store) error) error {
	store, err := c.deps.openStore(c.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			c.log.Warn("failed to close store", sl.Err(cerr))
		}
	}()
	return fn(store)
}

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "import <file>",
		Short:   "Import clients and subscriptions from a CSV or XLSX file",
		Example: "  resellerctl import clientes.xlsx",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return c.withStore(func(s Store) error {
				report, err := importer.New(s, c.log, c.cfg.Bot.DefaultCountryCode).Import(cmd.Context(), args[0], data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created: %d\nimported: %d\nskipped: %d\nheader: %t\n",
					report.Created, report.Imported, report.Skipped, report.Header)
				return nil
			})
		},
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <phone>",
		Short: "Soft-delete a client and deactivate its subscriptions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(func(s Store) error {
				cc := c.cfg.Bot.DefaultCountryCode
				if v, err := s.GetConfig(cmd.Context(), models.ConfigCountryCode); err == nil && v != "" {
					cc = v
				}
				phone, err := normalize.Phone(strings.Join(args, ""), cc)
				if err != nil {
					return err
				}
				client, err := s.GetClientByPhone(cmd.Context(), phone)
				if err != nil {
					return fmt.Errorf("client %s: %w", phone, err)
				}
				if err := s.DeleteClient(cmd.Context(), client.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s (%s)\n", phone, client.Name)
				return nil
			})
		},
	}
}

func (c *cli) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check database schema and license status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withStore(func(s Store) error {
				if err := s.Ready(cmd.Context()); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "database: ok")

				st, err := license.NewGate(s, c.cfg.Bot.IsAdmin, c.log).Status(cmd.Context())
				if err != nil {
					return err
				}
				switch {
				case st.Expiry == nil:
					fmt.Fprintln(out, "license: none")
				case st.Active:
					fmt.Fprintf(out, "license: active until %s\n", st.Expiry.Format(time.RFC3339))
				default:
					fmt.Fprintf(out, "license: expired at %s\n", st.Expiry.Format(time.RFC3339))
				}
				return nil
			})
		},
	}
}

func (c *cli) genkeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genkey <days>",
		Short: "Generate a one-time license key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("days: %w", err)
			}
			return c.withStore(func(s Store) error {
				key, err := license.NewGate(s, c.cfg.Bot.IsAdmin, c.log).Generate(cmd.Context(), days)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), key)
				return nil
			})
		},
	}
}

func (c *cli) tokenCmd() *cobra.Command {
	var (
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a bearer token for the webhook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.JWTSecretKey == "" {
				return errors.New("webhook_auth.jwt_secret_key is empty")
			}
			if ttl <= 0 {
				ttl = c.cfg.TokenTTL
			}
			token, err := jwt.NewJWTMaker(c.cfg.JWTSecretKey, ttl).GenerateToken(args[0], role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", jwt.RoleGateway, "token role: gateway or operator")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default webhook_auth.token_ttl)")
	return cmd
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.deps.migrate(c.cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
