package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"panelkit/internal/app"
	"panelkit/internal/blog"
	"panelkit/internal/config"
	"panelkit/internal/db"
	"panelkit/internal/events"
	"panelkit/internal/logging"
	"panelkit/internal/migrate"
	"panelkit/internal/orm"
	"panelkit/internal/panel"
	"panelkit/internal/server"
	"panelkit/internal/telemetry"
)

var rootCmd = &cobra.Command{
	Use:   "panel",
	Short: "Panelkit admin panel",
	Long: `Panelkit serves admin pages for the records of a SQLite database.
- Resources: one model each, with index, create, view and edit pages addressed as {resource}.{page}.
- Forms: fields plus relationship groups that read and write a related record (belongs-to, has-one, morph-one).
- Actions: delete, restore and force delete on soft-deletable records; each run lands in the audit log.
- Workspace: panel.yml plus the .panelkit directory holding the database.`,
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PANEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("lang", "", "locale for labels and messages")
	rootCmd.PersistentFlags().String("log-level", "info", "log level")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("lang", rootCmd.PersistentFlags().Lookup("lang"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(routesCmd())
	rootCmd.AddCommand(recordsCmd())
	rootCmd.AddCommand(actionCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var id string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write panel.yml and create the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(id)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "admin", "panel id")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing panel.yml")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPanel(cmd.Context(), func(ctx context.Context, p panel.Panel) error {
				version, err := migrate.Version(ctx, p.DB)
				if err != nil {
					return err
				}
				fmt.Printf("Schema at version %d\n", version)
				return nil
			})
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo blog records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPanel(cmd.Context(), func(ctx context.Context, p panel.Panel) error {
				n, err := blog.Seed(ctx, p.Store)
				if err != nil {
					return err
				}
				fmt.Printf("Seeded %d records\n", n)
				return nil
			})
		},
	}
}

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List resource page routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPanel(cmd.Context(), func(ctx context.Context, p panel.Panel) error {
				routes := p.Registry.Routes()
				if viper.GetBool("json") {
					return printJSON(routes)
				}
				base := strings.TrimSuffix(p.Config.Panel.Path, "/")
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Name", "Kind", "Path"})
				for _, r := range routes {
					tw.AppendRow(table.Row{r.Name, r.Kind, base + r.Path})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func recordsCmd() *cobra.Command {
	var trashed string
	var pageNum, perPage int
	cmd := &cobra.Command{
		Use:   "records <resource>",
		Short: "List the records of a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseTrashed(trashed)
			if err != nil {
				return err
			}
			return withPanel(cmd.Context(), func(ctx context.Context, p panel.Panel) error {
				list, err := p.ListRecords(ctx, cliRequest(p), args[0], panel.ListOptions{
					Trashed: filter,
					Page:    pageNum,
					PerPage: perPage,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(list)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Trashed", "Actions"})
				for _, rec := range list.Records {
					names := make([]string, len(rec.Actions))
					for i, a := range rec.Actions {
						names[i] = a.Name
					}
					tw.AppendRow(table.Row{rec.ID, rec.Title, rec.Trashed, strings.Join(names, ",")})
				}
				tw.AppendFooter(table.Row{"", fmt.Sprintf("page %d, %d total", list.Page, list.Total), "", ""})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&trashed, "trashed", "without", "without, with or only")
	cmd.Flags().IntVar(&pageNum, "page", 1, "page number")
	cmd.Flags().IntVar(&perPage, "per-page", 0, "records per page (config default when 0)")
	return cmd
}

func actionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "action <resource> <record-id> <action>",
		Short: "Run a record action such as delete, restore or forceDelete",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPanel(cmd.Context(), func(ctx context.Context, p panel.Panel) error {
				res, err := p.CallAction(ctx, cliRequest(p), args[0], args[1], args[2])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("%s: %s\n", res.Action, res.Outcome)
				for _, n := range res.Notifications {
					fmt.Printf("  [%s] %s\n", n.Status, n.Title)
				}
				return nil
			})
		},
	}
}

func eventsCmd() *cobra.Command {
	var n int
	var evtType, resource, recordID string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPanel(cmd.Context(), func(ctx context.Context, p panel.Panel) error {
				items, err := p.AuditEvents(ctx, events.Filter{Type: evtType, Resource: resource, RecordID: recordID, Limit: n})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Time", "Type", "Resource", "Record", "Actor"})
				for _, e := range items {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.Resource, e.RecordID, e.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&n, "limit", "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type")
	cmd.Flags().StringVar(&resource, "resource", "", "resource slug")
	cmd.Flags().StringVar(&recordID, "record", "", "record id")
	return cmd
}

func tokenCmd() *cobra.Command {
	var actor string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with PANEL_JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := config.LoadServerEnv()
			if err != nil {
				return err
			}
			if actor == "" {
				actor = viper.GetString("actor-id")
			}
			token, err := server.SignToken(env.JWTSecret, actor, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "token subject (defaults to --actor-id)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for none")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := config.LoadServerEnv()
			if err != nil {
				return err
			}
			if env.JWTSecret == "" && !env.AllowActorHeader {
				return fmt.Errorf("PANEL_JWT_SECRET is required for bearer auth (or set PANEL_ALLOW_ACTOR_HEADER=true for local use)")
			}
			if !cmd.Flags().Changed("addr") {
				addr = env.Addr
			}
			level := env.LogLevel
			if viper.IsSet("log-level") {
				level = viper.GetString("log-level")
			}
			log, file, err := logging.New().Level(level).Pretty(true).Make()
			if err != nil {
				return err
			}
			if file != nil {
				defer file.Close()
			}
			ctx := cmd.Context()
			shutdownTracing, err := telemetry.Setup(ctx, "panel", env.OTelEndpoint)
			if err != nil {
				return err
			}
			defer func() {
				flush, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTracing(flush); err != nil {
					log.Warn().Err(err).Msg("flush traces failed")
				}
			}()
			p, conn, err := app.Open(ctx, viper.GetString("workspace"), log)
			if err != nil {
				return err
			}
			defer conn.Close()
			handler, err := server.New(server.Config{
				Panel:    p,
				BasePath: p.Config.Panel.Path,
				Auth: server.AuthConfig{
					JWTSecret:        env.JWTSecret,
					AllowActorHeader: env.AllowActorHeader,
					Logger:           log,
				},
			})
			if err != nil {
				return err
			}
			server.StartWebhooks(ctx, p.Events, p.Config, log)
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-ctx.Done()
				shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdown)
			}()
			base := strings.TrimSuffix(p.Config.Panel.Path, "/")
			log.Info().Str("addr", addr).Str("base_path", p.Config.Panel.Path).
				Msgf("serving panel on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at %s/docs)", addr, base, base, base)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	return cmd
}

func withPanel(ctx context.Context, fn func(context.Context, panel.Panel) error) error {
	log, file, err := logging.New().Level(viper.GetString("log-level")).Pretty(true).Make()
	if err != nil {
		return err
	}
	if file != nil {
		defer file.Close()
	}
	p, conn, err := app.Open(ctx, viper.GetString("workspace"), log)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, p)
}

func cliRequest(p panel.Panel) panel.Request {
	lang := viper.GetString("lang")
	if lang == "" && p.Config != nil {
		lang = p.Config.Locales.Default
	}
	return panel.Request{Actor: viper.GetString("actor-id"), Locale: p.I18n.Match(lang)}
}

func parseTrashed(in string) (orm.TrashedFilter, error) {
	switch in {
	case "", "without":
		return orm.WithoutTrashed, nil
	case "with":
		return orm.WithTrashed, nil
	case "only":
		return orm.OnlyTrashed, nil
	}
	return 0, fmt.Errorf("--trashed must be without, with or only, got %q", in)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
