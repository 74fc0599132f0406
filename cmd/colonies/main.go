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
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"colonies/internal/app"
	"colonies/internal/config"
	"colonies/internal/db"
	"colonies/internal/domain"
	"colonies/internal/engine"
	"colonies/internal/seal"
	"colonies/internal/server"
	"colonies/internal/view"
)

var rootCmd = &cobra.Command{
	Use:   "colonies",
	Short: "Colonies game server",
	Long: `Colonies is a two-player card game of building expeditions.
- Accounts: players known by an external uuid and a unique username; only verified accounts may play.
- Games: created by one player inviting another; each turn plays or discards one card, then draws.
- Keys: the internal game key is sealed before it reaches a client; either the sealed key or the game id addresses a game.
- Notifications: every completed turn is published to the log, redis and webhooks as configured.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(viper.GetString("log-level"))
		if err != nil {
			return err
		}
		logrus.SetLevel(level)
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	_ = godotenv.Load()
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("COLONIES")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("as", "", "act as the player with this uuid")
	rootCmd.PersistentFlags().String("log-level", "info", "log level")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("as", rootCmd.PersistentFlags().Lookup("as"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(keyCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(gameCmd())
	rootCmd.AddCommand(serveCmd())
}

// loadConfig reads colonies.yml and applies environment overrides for the
// values that should not live in a file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("driver"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := viper.GetString("dsn"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := viper.GetString("encryption-key"); v != "" {
		cfg.Sealing.EncryptionKey = v
	}
	if v := viper.GetString("jwt-secret"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := viper.GetString("redis-addr"); v != "" {
		cfg.Notify.Redis.Addr = v
	}
	return cfg, cfg.Validate()
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.Open(ctx, cfg, logrus.StandardLogger())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		return fn(ctx, a.Engine)
	})
}

func actingPlayer() (string, error) {
	player := strings.TrimSpace(viper.GetString("as"))
	if player == "" {
		return "", errors.New("--as required (or COLONIES_AS)")
	}
	return player, nil
}

func configCmd() *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Workspace configuration"}
	cfgCmd.AddCommand(configInitCmd())
	cfgCmd.AddCommand(configShowCmd())
	cfgCmd.AddCommand(configValidateCmd())
	return cfgCmd
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default colonies.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Sealing.EncryptionKey != "" {
				cfg.Sealing.EncryptionKey = "<redacted>"
			}
			if cfg.Auth.JWTSecret != "" {
				cfg.Auth.JWTSecret = "<redacted>"
			}
			return printJSON(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate colonies.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply storage migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				fmt.Printf("%s storage is up to date\n", a.Config.Storage.Driver)
				return nil
			})
		},
	}
}

func keyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key",
		Short: "Generate a sealing key for sealing.encryption_key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := seal.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Println(key)
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the --as player",
		RunE: func(cmd *cobra.Command, args []string) error {
			player, err := actingPlayer()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := server.SignToken(cfg.Auth.JWTSecret, player, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 for none)")
	return cmd
}

func accountCmd() *cobra.Command {
	acct := &cobra.Command{Use: "account", Short: "Manage player accounts"}
	acct.AddCommand(accountAddCmd())
	acct.AddCommand(accountListCmd())
	acct.AddCommand(accountShowCmd())
	return acct
}

func accountAddCmd() *cobra.Command {
	var a domain.Account
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create or update an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ap *app.App) error {
				now := domain.Timestamp(time.Now())
				a.CreatedAt = now
				a.UpdatedAt = now
				if existing, err := ap.Accounts.AccountByUUID(ctx, a.UUID); err == nil {
					a.CreatedAt = existing.CreatedAt
				}
				if err := ap.Accounts.UpsertAccount(ctx, a); err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&a.UUID, "uuid", "", "external identity")
	cmd.Flags().StringVar(&a.Username, "username", "", "unique username")
	cmd.Flags().StringVar(&a.Email, "email", "", "email")
	cmd.Flags().StringVar(&a.Name, "name", "", "display name")
	cmd.Flags().BoolVar(&a.Verified, "verified", false, "mark the account verified")
	_ = cmd.MarkFlagRequired("uuid")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func accountListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Accounts.ListAccounts(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"UUID", "Username", "Name", "Verified"})
				for _, acct := range items {
					tw.AppendRow(table.Row{acct.UUID, acct.Username, acct.Name, acct.Verified})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func accountShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <username>",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				acct, err := a.Accounts.AccountByUsername(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(acct)
			})
		},
	}
}

func gameCmd() *cobra.Command {
	g := &cobra.Command{Use: "game", Short: "Play games as the --as player"}
	g.AddCommand(gameNewCmd())
	g.AddCommand(gameListCmd())
	g.AddCommand(gameShowCmd())
	g.AddCommand(gameTurnCmd())
	g.AddCommand(gameChatCmd())
	return g
}

func gameNewCmd() *cobra.Command {
	var opponent string
	var live bool
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Invite an opponent to a new game",
		RunE: func(cmd *cobra.Command, args []string) error {
			player, err := actingPlayer()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := e.CreateGame(ctx, engine.CreateGameOptions{Creator: player, Opponent: opponent, LiveScoring: live})
				if err != nil {
					return err
				}
				return printGame(v)
			})
		},
	}
	cmd.Flags().StringVar(&opponent, "opponent", "", "opponent username")
	cmd.Flags().BoolVar(&live, "live-scoring", false, "show scores while the game runs")
	_ = cmd.MarkFlagRequired("opponent")
	return cmd
}

func gameListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the player's games",
		RunE: func(cmd *cobra.Command, args []string) error {
			player, err := actingPlayer()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListGames(ctx, player)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Players", "Status", "Turn", "Your move", "Updated"})
				for _, s := range items {
					names := make([]string, 0, len(s.Players))
					for _, p := range s.Players {
						names = append(names, p.Username)
					}
					tw.AppendRow(table.Row{s.ID, strings.Join(names, " vs "), s.Status, s.Turn, s.IsMyTurn, s.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func gameShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id-or-key>",
		Short: "Show the player's view of a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			player, err := actingPlayer()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := e.GetGame(ctx, player, args[0])
				if err != nil {
					return err
				}
				return printGame(v)
			})
		},
	}
}

func gameTurnCmd() *cobra.Command {
	var turn int
	var action string
	cmd := &cobra.Command{
		Use:   "turn <id-or-key>",
		Short: "Play or discard a card, then draw",
		Long: `Actions are P (play) or D (discard) followed by suit:rank, e.g. P0:5.
Append ::suit:rank naming a discard pile top to draw from it instead of the deck, e.g. D1:3::2:7.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			player, err := actingPlayer()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if !cmd.Flags().Changed("turn") {
					v, err := e.GetGame(ctx, player, args[0])
					if err != nil {
						return err
					}
					turn = v.Turn
				}
				res, err := e.SubmitTurn(ctx, engine.TurnOptions{Player: player, Game: args[0], Turn: turn, Action: action})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("drew %s (%s)\n", res.Drawn.Label, cardRef(res.Drawn))
				return printGame(res.Game)
			})
		},
	}
	cmd.Flags().IntVar(&turn, "turn", 0, "turn number the action was chosen on (defaults to the current turn)")
	cmd.Flags().StringVar(&action, "action", "", "turn action")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

func gameChatCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "chat <id-or-key>",
		Short: "Post a chat message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			player, err := actingPlayer()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := e.PostChat(ctx, player, args[0], message)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(v.Chats)
				}
				for _, c := range v.Chats {
					fmt.Printf("%s  %s: %s\n", c.CreatedAt, c.UUID, c.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "message text")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				cfg := a.Config
				if !cmd.Flags().Changed("addr") {
					addr = cfg.Server.Addr
				}
				if !cmd.Flags().Changed("base-path") {
					basePath = cfg.Server.BasePath
				}
				authCfg := server.AuthConfig{
					JWTSecret:         cfg.Auth.JWTSecret,
					AllowPlayerHeader: cfg.Auth.AllowPlayerHeader,
				}
				if authCfg.JWTSecret == "" && !authCfg.AllowPlayerHeader {
					return fmt.Errorf("auth.jwt_secret (or COLONIES_JWT_SECRET) is required for bearer auth")
				}
				handler, err := server.New(server.Config{Engine: a.Engine, BasePath: basePath, Auth: authCfg, Logger: logrus.StandardLogger()})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				logrus.WithFields(logrus.Fields{"addr": addr, "base_path": basePath}).Info("serving colonies API (OpenAPI at openapi.json, Swagger UI at /docs)")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// printGame renders the board with one column per suit.
func printGame(v view.PlayerView) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	names := make([]string, len(v.Players))
	for i, p := range v.Players {
		names[i] = p.Username
	}
	me, opp := v.PlayerIndex, 1-v.PlayerIndex
	fmt.Printf("game %s  %s  turn %d  status %s\n", v.ID, strings.Join(names, " vs "), v.Turn, v.Status)
	fmt.Printf("key %s\n", v.Key)
	if v.IsMyTurn {
		fmt.Println("your move")
	} else {
		fmt.Printf("waiting for %s\n", names[opp])
	}

	header := table.Row{""}
	for _, s := range v.Cards.Suits {
		header = append(header, s)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	tw.AppendRow(pileRow(names[opp], v.Cards.Played[opp]))
	discard := table.Row{"discard"}
	for _, pile := range v.Cards.Discarded {
		if len(pile) == 0 {
			discard = append(discard, "")
			continue
		}
		discard = append(discard, fmt.Sprintf("%s [%d]", cardRef(pile[0].Card), len(pile)))
	}
	tw.AppendRow(discard)
	tw.AppendRow(pileRow(names[me], v.Cards.Played[me]))
	tw.Render()

	hand := table.NewWriter()
	hand.SetOutputMirror(os.Stdout)
	hand.AppendHeader(table.Row{"Card", "Play", "Discard"})
	for _, hc := range v.Cards.Hand {
		hand.AppendRow(table.Row{hc.Label, hc.ActionPlay, hc.ActionDiscard})
	}
	hand.Render()

	if v.Cards.DeckCount != nil {
		fmt.Printf("deck: %d cards\n", *v.Cards.DeckCount)
	}
	if v.Scoring != nil {
		return printJSON(v.Scoring)
	}
	return nil
}

func pileRow(label string, piles [][]view.Card) table.Row {
	row := table.Row{label}
	for _, pile := range piles {
		refs := make([]string, 0, len(pile))
		for _, c := range pile {
			refs = append(refs, c.Label)
		}
		row = append(row, strings.Join(refs, " "))
	}
	return row
}

func cardRef(c view.Card) string {
	return fmt.Sprintf("%d:%d", c.Suit, c.Rank)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
