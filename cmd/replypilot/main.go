package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/avesohel/replypilot/internal/compose"
	"github.com/avesohel/replypilot/internal/config"
	"github.com/avesohel/replypilot/internal/database"
	"github.com/avesohel/replypilot/internal/llm"
	"github.com/avesohel/replypilot/internal/monitor"
	"github.com/avesohel/replypilot/internal/pipeline"
	"github.com/avesohel/replypilot/internal/platform"
	"github.com/avesohel/replypilot/internal/semindex"
	"github.com/avesohel/replypilot/internal/server"
	"github.com/avesohel/replypilot/internal/transcript"
	"github.com/avesohel/replypilot/internal/usage"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "replypilot",
	Short:   "Automatic AI replies to comments on your content",
	Long:    "ReplyPilot watches connected channels for fresh comments, filters them against your rules, and posts AI-generated replies grounded in your content's transcripts.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(replyCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(channelsCmd)
	rootCmd.AddCommand(transcriptsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("replypilot", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/replypilot/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the platform API, credentials, and LLM provider.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Transcripts:")
		fmt.Printf("  Total: %d\n", stats.Transcripts)
		fmt.Printf("  Completed: %d\n", stats.TranscriptsCompleted)
		fmt.Printf("  Failed: %d\n", stats.TranscriptsFailed)
		fmt.Println("\nSemantic index:")
		fmt.Printf("  Entries: %d\n", stats.Embeddings)
		fmt.Println("\nChannels:")
		fmt.Printf("  Connected: %d (%d active)\n", stats.Channels, stats.ActiveChannels)
		fmt.Println("\nReplies:")
		fmt.Printf("  Sent: %d\n", stats.RepliesSent)
		fmt.Printf("  Skipped: %d\n", stats.RepliesSkipped)
		fmt.Printf("  Failed: %d\n", stats.RepliesFailed)

		users, err := db.ListAutoUsers()
		if err != nil {
			return fmt.Errorf("listing users: %w", err)
		}
		if len(users) > 0 {
			fmt.Println("\nAuto-reply users:")
			acct := usage.New(db)
			for i := range users {
				s := &users[i]
				left, err := acct.Remaining(s.UserID)
				if err != nil {
					return err
				}
				quota := "unlimited"
				if left >= 0 {
					quota = fmt.Sprintf("%d left on %s plan", left, s.Plan)
				}
				fmt.Printf("  %s: %d replies this period (%s)\n", s.UserID, s.PeriodReplies, quota)
			}
		}
		return nil
	},
}

// --- run / watch commands ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one sweep over all connected channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stack := buildStack(db)
		ctx, stop := signalContext()
		defer stop()

		stats, ran := stack.monitor.Sweep(ctx)
		if !ran {
			return fmt.Errorf("another sweep is already running")
		}

		fmt.Println("Sweep complete:")
		fmt.Printf("  Users: %d\n", stats.Users)
		fmt.Printf("  Channels: %d\n", stats.Channels)
		fmt.Printf("  Comments processed: %d\n", stats.Comments)
		fmt.Printf("  Replies sent: %d\n", stats.Sent)
		fmt.Printf("  Skipped: %d\n", stats.Skipped)
		fmt.Printf("  Failed: %d\n", stats.Failed)
		if stats.Errors > 0 {
			fmt.Printf("  Errors: %d\n", stats.Errors)
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Sweep continuously on the configured interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stack := buildStack(db)
		ctx, stop := signalContext()
		defer stop()

		stack.monitor.Start(ctx)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stack := buildStack(db)
		ctx, stop := signalContext()
		defer stop()

		return server.Serve(ctx, db, stack.pipeline, cfg.Server.Port)
	},
}

// --- reply command ---

var (
	replyChannel string
	replyContent string
	replyPost    bool
)

var replyCmd = &cobra.Command{
	Use:   "reply <comment text>",
	Short: "Run one comment through the reply pipeline",
	Long:  "Generates a reply for the given comment text using the current settings. Without --post the reply is only printed and logged, not published.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stack := buildStack(db)
		ch, err := resolveChannel(db, replyChannel)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		out, err := stack.pipeline.ProcessComment(ctx, pipeline.Input{
			Channel: ch,
			Comment: platform.Comment{
				ID:          "cli-" + uuid.NewString(),
				ContentID:   replyContent,
				AuthorName:  "cli",
				Text:        strings.Join(args, " "),
				PublishedAt: time.Now(),
			},
			Post: replyPost,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Status: %s\n", out.Status)
		if out.SkipReason != "" {
			fmt.Printf("Skip reason: %s\n", out.SkipReason)
		}
		if out.ReplyText != "" {
			fmt.Printf("Confidence: %.2f\n", out.Confidence)
			if !out.Generated {
				fmt.Println("(fallback reply, model unavailable)")
			}
			fmt.Printf("\n%s\n", out.ReplyText)
		}
		return nil
	},
}

func init() {
	replyCmd.Flags().StringVar(&replyChannel, "channel", "", "Platform channel id (defaults to the first connected channel)")
	replyCmd.Flags().StringVar(&replyContent, "content", "", "Content id to draw context from")
	replyCmd.Flags().BoolVar(&replyPost, "post", false, "Actually post the reply to the platform")
}

// --- settings commands ---

var settingsUser string

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change reply settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		s, err := db.GetOrCreateSettings(settingsUser)
		if err != nil {
			return err
		}

		fmt.Printf("User: %s (plan %s)\n\n", s.UserID, s.Plan)
		fmt.Printf("Replies: enabled=%v auto=%v\n", s.Enabled, s.AutoEnabled)
		fmt.Printf("Voice: tone=%s length=%s friendliness=%d humor=%d formality=%d enthusiasm=%d\n",
			s.Tone, s.Length, s.Friendliness, s.Humor, s.Formality, s.Enthusiasm)
		fmt.Printf("Filters: min_sentiment=%.2f min_word_count=%d exclude_spam=%v require_question=%v\n",
			s.MinSentiment, s.MinWordCount, s.ExcludeSpam, s.RequireQuestion)
		if len(s.BannedWords) > 0 {
			fmt.Printf("  banned_words: %s\n", strings.Join(s.BannedWords, ", "))
		}
		if len(s.RequiredWords) > 0 {
			fmt.Printf("  required_words: %s\n", strings.Join(s.RequiredWords, ", "))
		}
		fmt.Printf("Automation: delay=%ds max_per_content=%d skip_replied=%v\n",
			s.AutoDelaySeconds, s.AutoMaxPerContent, s.AutoSkipReplied)
		fmt.Printf("Generation: model=%q max_tokens=%d temperature=%.1f\n", s.Model, s.MaxTokens, s.Temperature)
		fmt.Printf("Usage: %d this period (since %s), %d total, success rate %d%%\n",
			s.PeriodReplies, s.PeriodStart, s.TotalReplies, s.SuccessRate)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set key=value [key=value ...]",
	Short: "Change settings",
	Long:  "Change one or more settings, e.g.: replypilot settings set tone=casual min_word_count=3 banned_words=spoiler,giveaway",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		patch := make(map[string]any, len(args))
		for _, arg := range args {
			key, value, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("expected key=value, got %q", arg)
			}
			patch[key] = value
		}

		s, err := db.GetOrCreateSettings(settingsUser)
		if err != nil {
			return err
		}
		if err := database.ApplySettingsPatch(s, patch); err != nil {
			return err
		}
		if err := db.UpdateSettings(s); err != nil {
			return err
		}

		keys := make([]string, 0, len(patch))
		for k := range patch {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Printf("Updated: %s\n", strings.Join(keys, ", "))
		return nil
	},
}

func init() {
	settingsCmd.PersistentFlags().StringVar(&settingsUser, "user", server.DefaultUser, "Settings owner")
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}

// --- channels commands ---

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Manage connected channels",
}

var channelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List connected channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		channels, err := db.ListAllChannels()
		if err != nil {
			return err
		}
		if len(channels) == 0 {
			fmt.Println("No channels connected. Use 'replypilot channels add'.")
			return nil
		}
		for _, ch := range channels {
			state := "active"
			if !ch.Active {
				state = "inactive"
			}
			fmt.Printf("%d  %s  %q  user=%s  %s\n", ch.ID, ch.PlatformID, ch.Title, ch.UserID, state)
		}
		return nil
	},
}

var (
	channelUser    string
	channelTitle   string
	channelToken   string
	channelRefresh string
)

var channelsAddCmd = &cobra.Command{
	Use:   "add <platform-channel-id>",
	Short: "Connect a channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := db.InsertChannel(channelUser, args[0], channelTitle, channelToken, channelRefresh)
		if err != nil {
			return err
		}
		if id == 0 {
			fmt.Printf("Channel %s is already connected.\n", args[0])
			return nil
		}
		fmt.Printf("Connected channel %s (id %d).\n", args[0], id)
		return nil
	},
}

var channelsRemoveCmd = &cobra.Command{
	Use:   "remove <platform-channel-id>",
	Short: "Disconnect a channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ch, err := db.GetChannelByPlatformID(args[0])
		if err != nil {
			return err
		}
		if ch == nil {
			return fmt.Errorf("no channel %q", args[0])
		}
		if err := db.DeleteChannel(ch.ID); err != nil {
			return err
		}
		fmt.Printf("Removed channel %s.\n", args[0])
		return nil
	},
}

func init() {
	channelsAddCmd.Flags().StringVar(&channelUser, "user", server.DefaultUser, "Owner of the channel")
	channelsAddCmd.Flags().StringVar(&channelTitle, "title", "", "Display title")
	channelsAddCmd.Flags().StringVar(&channelToken, "access-token", "", "OAuth access token")
	channelsAddCmd.Flags().StringVar(&channelRefresh, "refresh-token", "", "OAuth refresh token")

	channelsCmd.AddCommand(channelsListCmd)
	channelsCmd.AddCommand(channelsAddCmd)
	channelsCmd.AddCommand(channelsRemoveCmd)
}

var transcriptsCmd = &cobra.Command{
	Use:   "transcripts",
	Short: "Manage extracted transcripts",
}

var transcriptsShowCmd = &cobra.Command{
	Use:   "show <content-id>",
	Short: "Show a stored transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		tr, err := db.GetTranscript(args[0])
		if err != nil {
			return err
		}
		if tr == nil {
			return fmt.Errorf("no transcript for %q", args[0])
		}
		fmt.Printf("%s  %q  user=%s  status=%s  %d words\n",
			tr.ContentID, tr.Title, tr.UserID, tr.Status, tr.WordCount)
		if tr.Summary != nil {
			fmt.Printf("\n%s\n", *tr.Summary)
		}
		return nil
	},
}

var transcriptsRemoveCmd = &cobra.Command{
	Use:   "remove <content-id>",
	Short: "Delete a transcript and its index entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		tr, err := db.GetTranscript(args[0])
		if err != nil {
			return err
		}
		if tr == nil {
			return fmt.Errorf("no transcript for %q", args[0])
		}
		store := transcript.New(db, nil, nil, nil, "", "")
		if err := store.Delete(tr.UserID, tr.ContentID); err != nil {
			return err
		}
		fmt.Printf("Removed transcript for %s.\n", args[0])
		return nil
	},
}

func init() {
	transcriptsCmd.AddCommand(transcriptsShowCmd)
	transcriptsCmd.AddCommand(transcriptsRemoveCmd)
}

// --- wiring ---

type stack struct {
	pipeline *pipeline.Pipeline
	monitor  *monitor.Monitor
}

// buildStack wires the reply pipeline and the monitor from config.
func buildStack(db *database.DB) *stack {
	api := platform.NewClient(cfg.Platform)
	provider := llm.CreateProvider(cfg.Generation.Provider, cfg.Generation.Model,
		cfg.Generation.OllamaURL, cfg.Generation.OpenAIModel, cfg.Generation.APIKeyEnv)

	var embedder llm.Embedder
	if cfg.Embedding.Model != "" {
		embedder = llm.NewOllamaEmbedder(cfg.Embedding.Model, cfg.Generation.OllamaURL)
	} else {
		log.Println("No embedding model configured, semantic index disabled")
	}
	index := semindex.New(db, embedder, cfg.Embedding.Model, cfg.Index.Threshold)

	store := transcript.New(db, api, provider, index, cfg.Generation.Model, cfg.Platform.TranscriptLang)
	composer := compose.New(provider, cfg.Generation.Model)
	accountant := usage.New(db)
	pipe := pipeline.New(db, api, store, index, composer, accountant, cfg.Index.TopK)

	mon := monitor.New(db, api, pipe, accountant, monitor.Options{
		Interval:      time.Duration(cfg.Monitor.IntervalMinutes) * time.Minute,
		ContentWindow: time.Duration(cfg.Monitor.ContentWindowDays) * 24 * time.Hour,
		CommentWindow: time.Duration(cfg.Monitor.CommentWindowHours) * time.Hour,
		ReplyDelay:    time.Duration(cfg.Monitor.ReplyDelaySeconds) * time.Second,
		MaxPerContent: cfg.Monitor.MaxRepliesPerItem,
	})
	return &stack{pipeline: pipe, monitor: mon}
}

func openDB() (*database.DB, error) {
	dataDir := cfg.Output.DataDir
	if dataDir == "" {
		dataDir = config.DataDir()
	}
	return database.Open(filepath.Join(dataDir, "replypilot.db"))
}

func resolveChannel(db *database.DB, platformID string) (*database.Channel, error) {
	if platformID != "" {
		ch, err := db.GetChannelByPlatformID(platformID)
		if err != nil {
			return nil, err
		}
		if ch == nil {
			return nil, fmt.Errorf("no channel %q; connect it with 'replypilot channels add'", platformID)
		}
		return ch, nil
	}

	channels, err := db.ListAllChannels()
	if err != nil {
		return nil, err
	}
	if len(channels) > 0 {
		return &channels[0], nil
	}
	// no channel yet: still usable for offline reply testing
	return &database.Channel{UserID: server.DefaultUser, PlatformID: "local"}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
