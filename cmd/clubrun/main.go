package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"clubrun/internal/app"
	"clubrun/internal/config"
	"clubrun/internal/db"
	"clubrun/internal/domain"
	"clubrun/internal/repo"
	"clubrun/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "clubrun",
	Short: "Club Run CLI",
	Long: `Club Run verifies nightlife missions and settles their payouts.
Core concepts:
- Mission: a curator's request that a runner gets a specific track played,
  with a budget and a payment method.
- Verification: after the runner reports success, the play-history oracle is
  asked whether the track was actually played inside the mission window.
- Proof: a verified play is archived as a content-addressed document and the
  hash is pinned on the mission.
- Payment: on-chain methods settle from escrow; fiat channels produce a
  payment instruction the curator completes manually within 24 hours.
- Event log: every transition is recorded, view with 'clubrun log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CLUBRUN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(missionCmd())
	rootCmd.AddCommand(runnerCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(paymentCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default clubrun.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	return cmd
}

func missionCmd() *cobra.Command {
	mission := &cobra.Command{Use: "mission", Short: "Manage missions"}
	mission.AddCommand(missionCreateCmd())
	mission.AddCommand(missionListCmd())
	mission.AddCommand(missionShowCmd())
	mission.AddCommand(missionAssignCmd())
	return mission
}

func missionCreateCmd() *cobra.Command {
	var id, curator, venue, title, method string
	var trackTitle, trackArtist string
	var durationMS int
	var bpm, budget float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create mission",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				return fmt.Errorf("--title required")
			}
			if budget <= 0 {
				return fmt.Errorf("--budget must be positive")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if !a.Payments.Supported(method) {
					return fmt.Errorf("unsupported payment method %q", method)
				}
				if curator == "" {
					curator = viper.GetString("actor-id")
				}
				m := domain.Mission{
					ID:            id,
					CuratorID:     curator,
					Title:         title,
					Budget:        budget,
					PaymentMethod: method,
					Status:        domain.MissionPending,
				}
				if m.ID == "" {
					m.ID = newID()
				}
				if venue != "" {
					m.VenueID = &venue
				}
				if trackTitle != "" {
					track := domain.TrackRequirement{
						Title:      trackTitle,
						Artist:     trackArtist,
						DurationMS: durationMS,
						BPM:        bpm,
					}
					data, err := json.Marshal(map[string]any{"track": track})
					if err != nil {
						return err
					}
					m.RequirementsJSON = string(data)
				}
				now := time.Now().UTC().Format(time.RFC3339)
				m.CreatedAt = now
				m.UpdatedAt = now
				if err := a.Repo.InsertMission(ctx, nil, m); err != nil {
					return err
				}
				return printJSON(m)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "mission id (generated when empty)")
	cmd.Flags().StringVar(&curator, "curator", "", "curator id (defaults to --actor-id)")
	cmd.Flags().StringVar(&venue, "venue", "", "venue id")
	cmd.Flags().StringVar(&title, "title", "", "mission title")
	cmd.Flags().Float64Var(&budget, "budget", 0, "payout amount")
	cmd.Flags().StringVar(&method, "method", "matic", "payment method (matic, usdc, paypal, cashapp, zelle, venmo)")
	cmd.Flags().StringVar(&trackTitle, "track-title", "", "required track title")
	cmd.Flags().StringVar(&trackArtist, "track-artist", "", "required track artist")
	cmd.Flags().IntVar(&durationMS, "track-duration-ms", 0, "required track duration in ms")
	cmd.Flags().Float64Var(&bpm, "track-bpm", 0, "required track BPM")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func missionListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List missions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				missions, err := a.Repo.ListMissions(ctx, status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(missions)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Runner", "Budget", "Method"})
				for _, m := range missions {
					runner := ""
					if m.RunnerID != nil {
						runner = *m.RunnerID
					}
					tw.AppendRow(table.Row{m.ID, m.Title, m.Status, runner, m.Budget, m.PaymentMethod})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func missionShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				m, err := a.Repo.GetMission(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(m)
			})
		},
	}
	return cmd
}

func missionAssignCmd() *cobra.Command {
	var runnerID string
	cmd := &cobra.Command{
		Use:   "assign <id>",
		Short: "Assign a runner to a pending mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if runnerID == "" {
				return fmt.Errorf("--runner required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, err := a.Repo.GetRunner(ctx, runnerID); err != nil {
					return fmt.Errorf("runner %s: %w", runnerID, err)
				}
				now := time.Now().UTC().Format(time.RFC3339)
				if err := a.Repo.AssignRunner(ctx, args[0], runnerID, now); err != nil {
					return err
				}
				m, err := a.Repo.GetMission(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(m)
			})
		},
	}
	cmd.Flags().StringVar(&runnerID, "runner", "", "runner id")
	return cmd
}

func runnerCmd() *cobra.Command {
	runner := &cobra.Command{Use: "runner", Short: "Manage runners"}
	runner.AddCommand(runnerCreateCmd())
	runner.AddCommand(runnerLinkCmd())
	return runner
}

func runnerCreateCmd() *cobra.Command {
	var id, name, wallet string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create runner",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				runner := domain.Runner{
					ID:          id,
					DisplayName: name,
					CreatedAt:   time.Now().UTC().Format(time.RFC3339),
				}
				if runner.ID == "" {
					runner.ID = newID()
				}
				if wallet != "" {
					runner.WalletAddr = &wallet
				}
				if err := a.Repo.InsertRunner(ctx, runner); err != nil {
					return err
				}
				return printJSON(runner)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "runner id (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&wallet, "wallet", "", "wallet address for on-chain payouts")
	return cmd
}

func runnerLinkCmd() *cobra.Command {
	var runnerID, accessToken, refreshToken, expiresAt string
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Link a runner's play-history account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if runnerID == "" || accessToken == "" || refreshToken == "" {
				return fmt.Errorf("--runner, --access-token and --refresh-token required")
			}
			if _, err := time.Parse(time.RFC3339, expiresAt); err != nil {
				return fmt.Errorf("--expires-at must be RFC3339: %w", err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, err := a.Repo.GetRunner(ctx, runnerID); err != nil {
					return fmt.Errorf("runner %s: %w", runnerID, err)
				}
				creds := domain.OracleCredentials{
					RunnerID:     runnerID,
					AccessToken:  accessToken,
					RefreshToken: refreshToken,
					ExpiresAt:    expiresAt,
					UpdatedAt:    time.Now().UTC().Format(time.RFC3339),
				}
				if err := a.Repo.UpsertOracleCredentials(ctx, creds); err != nil {
					return err
				}
				fmt.Printf("Linked play-history account for runner %s\n", runnerID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&runnerID, "runner", "", "runner id")
	cmd.Flags().StringVar(&accessToken, "access-token", "", "oracle access token")
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "oracle refresh token")
	cmd.Flags().StringVar(&expiresAt, "expires-at", "", "access token expiry (RFC3339)")
	return cmd
}

func verifyCmd() *cobra.Command {
	verify := &cobra.Command{Use: "verify", Short: "Verify missions"}
	verify.AddCommand(verifyQueueCmd())
	verify.AddCommand(verifyScheduleCmd())
	verify.AddCommand(verifyStatusCmd())
	return verify
}

func verifyQueueCmd() *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "queue <mission-id>",
		Short: "Queue a verification attempt and wait for the first pass",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := parseWindow(start, end)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				m, err := a.Repo.GetMission(ctx, args[0])
				if err != nil {
					return err
				}
				if m.RunnerID == nil || *m.RunnerID == "" {
					return fmt.Errorf("mission %s has no runner assigned", m.ID)
				}
				if _, err := a.Verify.QueueMissionForVerification(ctx, m.ID, *m.RunnerID, window); err != nil {
					return err
				}
				if err := a.Verify.Queue.WaitIdle(ctx); err != nil {
					return err
				}
				status, err := a.Verify.GetVerificationStatus(ctx, m.ID)
				if err != nil {
					return err
				}
				return printJSON(status)
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "window start (RFC3339)")
	cmd.Flags().StringVar(&end, "end", "", "window end (RFC3339)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func verifyScheduleCmd() *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "schedule <mission-id>",
		Short: "Arm a verification at window end (runs under serve)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := parseWindow(start, end); err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				m, err := a.Repo.GetMission(ctx, args[0])
				if err != nil {
					return err
				}
				if m.RunnerID == nil || *m.RunnerID == "" {
					return fmt.Errorf("mission %s has no runner assigned", m.ID)
				}
				scheduled, err := a.Verify.ScheduleMissionVerification(ctx, m.ID, *m.RunnerID, start, end)
				if err != nil {
					return err
				}
				return printJSON(scheduled)
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "window start (RFC3339)")
	cmd.Flags().StringVar(&end, "end", "", "window end (RFC3339)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func verifyStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <mission-id>",
		Short: "Show verification status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				status, err := a.Verify.GetVerificationStatus(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(status)
			})
		},
	}
	return cmd
}

func paymentCmd() *cobra.Command {
	payment := &cobra.Command{Use: "payment", Short: "Manage mission payouts"}
	payment.AddCommand(paymentSendCmd())
	payment.AddCommand(paymentCompleteCmd())
	payment.AddCommand(paymentStatusCmd())
	payment.AddCommand(paymentListCmd())
	return payment
}

func paymentSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <mission-id>",
		Short: "Dispatch the payout for a mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				m, err := a.Repo.GetMission(ctx, args[0])
				if err != nil {
					return err
				}
				if m.RunnerID == nil || *m.RunnerID == "" {
					return fmt.Errorf("mission %s has no runner to pay", m.ID)
				}
				result, err := a.Payments.ProcessPayment(ctx, m.PaymentMethod, m.Budget, *m.RunnerID, m.ID, m.CuratorID)
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	}
	return cmd
}

func paymentCompleteCmd() *cobra.Command {
	var details string
	cmd := &cobra.Command{
		Use:   "complete <instruction-id>",
		Short: "Mark a manual payment instruction as settled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				instruction, err := a.Payments.MarkCompleted(ctx, args[0], details)
				if err != nil {
					return err
				}
				return printJSON(instruction)
			})
		},
	}
	cmd.Flags().StringVar(&details, "tx", "", "settlement reference (receipt id, tx hash)")
	return cmd
}

func paymentStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <instruction-id>",
		Short: "Show payment instruction status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				instruction, err := a.Repo.GetPaymentInstruction(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(instruction)
			})
		},
	}
	return cmd
}

func paymentListCmd() *cobra.Command {
	var missionID, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List payment instructions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Repo.ListPaymentInstructions(ctx, missionID, status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Mission", "Method", "Amount", "Fee", "Status", "Expires"})
				for _, in := range items {
					tw.AppendRow(table.Row{in.ID, in.MissionID, in.Method, in.Amount, in.Fee, in.Status, in.ExpiresAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&missionID, "mission", "", "mission filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter (pending, completed, expired)")
	return cmd
}

func apikeyCmd() *cobra.Command {
	apikey := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	apikey.AddCommand(apikeyCreateCmd())
	apikey.AddCommand(apikeyListCmd())
	apikey.AddCommand(apikeyDeleteCmd())
	return apikey
}

func apikeyCreateCmd() *cobra.Command {
	var actor, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create API key (secret printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				actor = viper.GetString("actor-id")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				secret := newID() + newID()
				key := domain.APIKey{
					ID:        newID(),
					ActorID:   actor,
					Name:      name,
					KeyHash:   repo.HashAPIKey(secret),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := a.Repo.InsertAPIKey(ctx, nil, key); err != nil {
					return err
				}
				return printJSON(map[string]string{
					"id":       key.ID,
					"actor_id": key.ActorID,
					"name":     key.Name,
					"key":      secret,
				})
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor the key acts as (defaults to --actor-id)")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Repo.ListAPIKeys(ctx, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range items {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor filter")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	logc := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	logc.AddCommand(logTailCmd())
	return logc
}

func logTailCmd() *cobra.Command {
	var n int
	var entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				events, err := a.Repo.ListEvents(ctx, n, entityKind, entityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor"})
				for _, e := range events {
					entity := e.EntityKind
					if e.EntityID != "" {
						entity += "/" + e.EntityID
					}
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, entity, e.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind (mission, payment, runner, notification)")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API with the verification worker and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			a, err := app.Open(workspace, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("CLUBRUN_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("CLUBRUN_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{
				DB:       a.DB,
				Repo:     a.Repo,
				Verify:   a.Verify,
				Payments: a.Payments,
				BasePath: basePath,
				Auth:     authCfg,
			})
			if err != nil {
				return err
			}
			a.Start()
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Club Run API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

// --- helpers ---

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	workspace := viper.GetString("workspace")
	a, err := app.Open(workspace, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func parseWindow(start, end string) (domain.VerificationWindow, error) {
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return domain.VerificationWindow{}, fmt.Errorf("--start must be RFC3339: %w", err)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return domain.VerificationWindow{}, fmt.Errorf("--end must be RFC3339: %w", err)
	}
	if !e.After(s) {
		return domain.VerificationWindow{}, fmt.Errorf("--end must be after --start")
	}
	return domain.VerificationWindow{
		StartTime: s.UTC().Format(time.RFC3339),
		EndTime:   e.UTC().Format(time.RFC3339),
	}, nil
}

func newID() string {
	return uuid.New().String()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
