// HoshiBot - Discord music & companion chat bot
// License: MIT
//
// Copyright (c) 2026 HoshiBot contributors

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dotsetgreg/hoshibot/pkg/bot"
	"github.com/dotsetgreg/hoshibot/pkg/bus"
	"github.com/dotsetgreg/hoshibot/pkg/channels"
	"github.com/dotsetgreg/hoshibot/pkg/chat"
	"github.com/dotsetgreg/hoshibot/pkg/config"
	"github.com/dotsetgreg/hoshibot/pkg/logger"
	"github.com/dotsetgreg/hoshibot/pkg/playback"
	"github.com/dotsetgreg/hoshibot/pkg/profile"
	"github.com/dotsetgreg/hoshibot/pkg/providers"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

const appName = "hoshibot"

var debugMode bool

func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func formatBuildInfo() (build string, goVer string) {
	if buildTime != "" {
		build = buildTime
	}
	goVer = goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return
}

func main() {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Discord companion bot with AI chat and music playback",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debugMode {
				logger.SetLevel(logger.DEBUG)
				fmt.Println("🔍 Debug mode enabled")
			}
		},
	}
	root.PersistentFlags().BoolVarP(&debugMode, "debug", "d", false, "enable debug logging")

	root.AddCommand(runCommand())
	root.AddCommand(chatCommand())
	root.AddCommand(statusCommand())
	root.AddCommand(versionCommand())

	if err := root.Execute(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func getConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".hoshibot", "config.json")
}

func loadConfig() (*config.Config, error) {
	// A local .env is optional; real deployments set the environment
	// directly.
	_ = godotenv.Load()
	return config.LoadConfig(getConfigPath())
}

// buildChatPipeline assembles the conversational half. A missing API
// key yields an orchestrator that politely declines, so the music
// half still runs.
func buildChatPipeline(cfg *config.Config) (*chat.Orchestrator, error) {
	directory, err := profile.Load(cfg.ProfilesPath())
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	store := chat.NewFileStore(cfg.HistoryPath())
	memory := chat.NewMemory(cfg.Chat.MaxHistory, store)
	memory.Hydrate()

	limiter := chat.NewRateLimiter(
		cfg.Chat.RateLimitPerUser,
		time.Duration(cfg.Chat.RateLimitWindow)*time.Second,
	)

	persona := cfg.Chat.Persona
	if strings.TrimSpace(persona) == "" {
		persona = config.DefaultPersona
	}
	prompts := chat.NewPromptBuilder(persona, directory, memory, cfg.Chat.MaxResponseLength)

	var provider providers.CompletionProvider
	if strings.TrimSpace(cfg.GetAPIKey()) == "" {
		logger.WarnC("main", "No Gemini API key configured, chat is disabled")
	} else {
		provider, err = providers.CreateProvider(cfg)
		if err != nil {
			return nil, fmt.Errorf("create provider: %w", err)
		}
	}

	return chat.NewOrchestrator(provider, limiter, prompts, memory, directory, cfg.Chat), nil
}

func runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and serve chat and music",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if strings.TrimSpace(cfg.Channels.Discord.Token) == "" {
				return fmt.Errorf("channels.discord.token is required in %s or HOSHIBOT_CHANNELS_DISCORD_TOKEN", getConfigPath())
			}

			chatOrch, err := buildChatPipeline(cfg)
			if err != nil {
				return err
			}

			msgBus := bus.NewMessageBus()

			manager, err := channels.NewManager(cfg, msgBus)
			if err != nil {
				return err
			}

			var cache *playback.TrackCache
			if !cfg.Playback.Stream {
				cache, err = playback.OpenTrackCache(cfg.CachePath())
				if err != nil {
					logger.WarnCF("main", "Track cache unavailable", map[string]interface{}{
						"error": err.Error(),
					})
					cache = nil
				}
			}

			resolver := playback.NewYTDLPResolver(
				cfg.Playback.YTDLPPath,
				cfg.DownloadsPath(),
				cfg.Playback.Stream,
				cache,
			)

			discord := manager.Discord()
			voice := channels.NewVoiceManager(discord.Session(), cfg.Playback.DefaultVolumePct)

			idlePresence := "Music & AI Chat | " + cfg.Channels.Discord.CommandPrefix + "help"
			if strings.TrimSpace(cfg.GetAPIKey()) == "" {
				idlePresence = "Music only | " + cfg.Channels.Discord.CommandPrefix + "help"
			}

			notify := func(chatID, content string) {
				msgBus.PublishOutbound(bus.OutboundMessage{
					Channel: "discord",
					ChatID:  chatID,
					Content: content,
				})
			}
			presence := func(status string) {
				if status == "" {
					status = idlePresence
				}
				discord.SetPresence(status)
			}
			player := playback.NewOrchestrator(resolver, voice, notify, presence)

			botLoop := bot.New(msgBus, chatOrch, player, voice, cfg.Channels.Discord.CommandPrefix)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if err := manager.StartAll(ctx); err != nil {
				return err
			}

			go player.Run(ctx)
			go botLoop.Run(ctx)

			if !cfg.Playback.Stream {
				janitor := playback.NewJanitor(
					cfg.DownloadsPath(),
					cfg.Playback.CleanupSchedule,
					time.Duration(cfg.Playback.RetentionHours)*time.Hour,
				)
				go janitor.Start(ctx)
			}

			stats := chatOrch.Stats()
			discord.SetPresence(idlePresence)

			fmt.Printf("✓ %s started\n", appName)
			fmt.Printf("  • Chat: %s\n", readyWord(stats.Initialized))
			fmt.Printf("  • Known profiles: %d\n", stats.KnownProfiles)
			fmt.Printf("  • Playback mode: %s\n", playbackMode(cfg.Playback.Stream))
			fmt.Println("Press Ctrl+C to stop")

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			<-sigChan

			fmt.Println("\nShutting down...")
			cancel()
			botLoop.Stop()
			if err := manager.StopAll(context.Background()); err != nil {
				logger.WarnCF("main", "Channel shutdown error", map[string]interface{}{
					"error": err.Error(),
				})
			}
			if cache != nil {
				_ = cache.Close()
			}
			msgBus.Close()
			fmt.Printf("✓ %s stopped\n", appName)
			return nil
		},
	}
}

func readyWord(ok bool) string {
	if ok {
		return "ready"
	}
	return "disabled (no API key)"
}

func playbackMode(stream bool) string {
	if stream {
		return "stream"
	}
	return "download"
}

func chatCommand() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the bot from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			orch, err := buildChatPipeline(cfg)
			if err != nil {
				return err
			}
			if !orch.Initialized() {
				return fmt.Errorf("providers.gemini.api_key is required in %s or HOSHIBOT_PROVIDERS_GEMINI_API_KEY", getConfigPath())
			}

			if message != "" {
				response, _ := orch.Respond(context.Background(), message, "cli", "CLI", "cli")
				fmt.Printf("\n%s %s\n", appName, response)
				return nil
			}

			fmt.Printf("%s Interactive chat (Ctrl+C to exit)\n\n", appName)
			interactiveChat(orch)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "send a single message and exit")
	return cmd
}

func interactiveChat(orch *chat.Orchestrator) {
	prompt := fmt.Sprintf("%s You: ", appName)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), ".hoshibot_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
		simpleInteractiveChat(orch)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return
		}

		response, _ := orch.Respond(context.Background(), input, "cli", "CLI", "cli")
		fmt.Printf("\n%s %s\n\n", appName, response)
	}
}

func simpleInteractiveChat(orch *chat.Orchestrator) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("%s You: ", appName)
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return
		}

		response, _ := orch.Respond(context.Background(), input, "cli", "CLI", "cli")
		fmt.Printf("\n%s %s\n\n", appName, response)
	}
}

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			configPath := getConfigPath()

			fmt.Printf("%s Status\n", appName)
			fmt.Printf("Version: %s\n", formatVersion())
			build, _ := formatBuildInfo()
			if build != "" {
				fmt.Printf("Build: %s\n", build)
			}
			fmt.Println()

			if _, err := os.Stat(configPath); err == nil {
				fmt.Println("Config:", configPath, "✓")
			} else {
				fmt.Println("Config:", configPath, "✗ (defaults in use)")
			}

			workspace := cfg.WorkspacePath()
			if _, err := os.Stat(workspace); err == nil {
				fmt.Println("Workspace:", workspace, "✓")
			} else {
				fmt.Println("Workspace:", workspace, "✗")
			}
			historyFile := cfg.HistoryPath()
			if _, err := os.Stat(historyFile); err == nil {
				fmt.Println("Chat history:", historyFile, "✓")
			} else {
				fmt.Println("Chat history:", historyFile, "not initialized")
			}

			status := func(enabled bool) string {
				if enabled {
					return "✓"
				}
				return "not set"
			}
			apiReady := strings.TrimSpace(cfg.GetAPIKey()) != ""
			discordReady := strings.TrimSpace(cfg.Channels.Discord.Token) != ""
			ytdlpPath, ytdlpErr := exec.LookPath(cfg.Playback.YTDLPPath)

			fmt.Printf("Model: %s\n", cfg.Providers.Gemini.Model)
			fmt.Println("Gemini API:", status(apiReady))
			fmt.Println("Discord token:", status(discordReady))
			if ytdlpErr == nil {
				fmt.Println("yt-dlp:", ytdlpPath, "✓")
			} else {
				fmt.Println("yt-dlp:", cfg.Playback.YTDLPPath, "✗ (music disabled)")
			}
			fmt.Println("Chat ready:", status(apiReady))
			fmt.Println("Bot ready:", status(discordReady))
			return nil
		},
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n", appName, formatVersion())
			build, goVer := formatBuildInfo()
			if build != "" {
				fmt.Printf("  Build: %s\n", build)
			}
			if goVer != "" {
				fmt.Printf("  Go: %s\n", goVer)
			}
		},
	}
}
