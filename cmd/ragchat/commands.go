package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Dhanuzh/ragchat/internal/config"
	"github.com/Dhanuzh/ragchat/internal/provider"
	"github.com/Dhanuzh/ragchat/internal/session"
)

// ---------------------------------------------------------------------------
// ask command
// ---------------------------------------------------------------------------

func askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask a single question and print the answer",
		Long:  "Ask a question in the most recent chat (or the one given with --chat) without the interactive loop.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := openApp(ctx, cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if newChat, _ := cmd.Flags().GetBool("new"); newChat {
				a.NewChat()
			} else if id, _ := cmd.Flags().GetString("chat"); id != "" {
				if !a.SwitchChat(ctx, id) {
					return fmt.Errorf("chat not found: %s", id)
				}
			}

			res := a.Ask(ctx, strings.Join(args, " "))
			switch res.Outcome {
			case session.OutcomeSkipped:
				return errors.New("question is empty")
			case session.OutcomeFailed:
				return errors.New(strings.TrimPrefix(res.Message.Content, "Error: "))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Message.Content)
			if show, _ := cmd.Flags().GetBool("context"); show {
				fmt.Fprintln(out)
				printChunks(out, res.Message.UsedChunks)
			}
			return nil
		},
	}
	cmd.Flags().String("chat", "", "Chat ID to ask in")
	cmd.Flags().Bool("new", false, "Ask in a new chat")
	cmd.Flags().Bool("context", false, "Print the context chunks behind the answer")
	return cmd
}

// ---------------------------------------------------------------------------
// chats command
// ---------------------------------------------------------------------------

func chatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "Manage chats",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all chats, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := openApp(ctx, cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			chats := a.Chats().List()
			format, _ := cmd.Flags().GetString("format")
			if format == "json" {
				data, _ := json.MarshalIndent(chats, "", "  ")
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			printChatList(cmd.OutOrStdout(), chats, a.Chats().ActiveID())
			return nil
		},
	}
	listCmd.Flags().String("format", "table", "Output format (table, json)")

	cmd.AddCommand(
		listCmd,
		&cobra.Command{
			Use:   "show [id]",
			Short: "Show the messages of a chat (default: most recent)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := signalContext()
				defer cancel()

				a, err := openApp(ctx, cmd, false)
				if err != nil {
					return err
				}
				defer a.Close()

				chat, ok := a.Chats().Active()
				if len(args) > 0 {
					chat, ok = a.Chats().Find(args[0])
				}
				if !ok {
					return errors.New("chat not found")
				}
				printChat(cmd.OutOrStdout(), chat)
				return nil
			},
		},
		&cobra.Command{
			Use:   "new",
			Short: "Create an empty chat",
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := signalContext()
				defer cancel()

				a, err := openApp(ctx, cmd, true)
				if err != nil {
					return err
				}
				defer a.Close()

				chat := a.NewChat()
				fmt.Fprintf(cmd.OutOrStdout(), "Chat %s created (model: %s).\n", chat.ID, chat.Model)
				return nil
			},
		},
	)

	cmd.RunE = listCmd.RunE
	cmd.Flags().AddFlagSet(listCmd.Flags())
	return cmd
}

// ---------------------------------------------------------------------------
// context command
// ---------------------------------------------------------------------------

func contextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context [chat-id]",
		Short: "Show the knowledge-base chunks behind an answer",
		Long: `Show the chunks behind the latest answer of a chat, or behind message
number --index as numbered by "chats show".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := openApp(ctx, cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			chatID := a.Chats().ActiveID()
			if len(args) > 0 {
				chatID = args[0]
			}
			if _, ok := a.Chats().Find(chatID); !ok {
				return errors.New("chat not found")
			}

			if n, _ := cmd.Flags().GetInt("index"); n > 0 {
				a.Selector().RecordSelection(chatID, n-1)
			}
			printChunks(cmd.OutOrStdout(), a.Selector().ChunksFor(chatID))
			return nil
		},
	}
	cmd.Flags().Int("index", 0, "Message number to inspect (1-based)")
	return cmd
}

// ---------------------------------------------------------------------------
// providers command
// ---------------------------------------------------------------------------

func providersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List providers or store their API keys",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List providers known to the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := openApp(ctx, cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()

			printProviders(cmd.OutOrStdout(), a.Resolver().DisplayProviders(), a.Resolver().CurrentProvider())
			return nil
		},
	}

	setKeyCmd := &cobra.Command{
		Use:   "set-key [provider]",
		Short: "Store an API key for a provider on the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			key, _ := cmd.Flags().GetString("key")
			if key == "" {
				key = provider.KeyFromEnv(args[0])
			}
			if key == "" {
				if url := provider.KeyURL(args[0]); url != "" {
					fmt.Fprintf(os.Stderr, "Get a key at %s\n", url)
				}
				var err error
				key, err = readHiddenInput(fmt.Sprintf("API key for %s: ", args[0]))
				if err != nil {
					return fmt.Errorf("failed to read key: %w", err)
				}
			}
			if strings.TrimSpace(key) == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No key entered, nothing saved.")
				return nil
			}

			a, err := openApp(ctx, cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.SaveProviderKey(ctx, args[0], key) {
				return fmt.Errorf("backend did not accept the key for %s", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key for %s saved.\n", args[0])
			printProviders(cmd.OutOrStdout(), a.Resolver().DisplayProviders(), "")
			return nil
		},
	}
	setKeyCmd.Flags().String("key", "", "API key (default: the provider's *_API_KEY env var, else prompted without echo)")

	cmd.AddCommand(listCmd, setKeyCmd)
	cmd.RunE = listCmd.RunE
	return cmd
}

// readHiddenInput reads a line without echo when stdin is a terminal.
func readHiddenInput(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		bytes, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bytes)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ---------------------------------------------------------------------------
// models command
// ---------------------------------------------------------------------------

func modelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List or select models",
	}

	listCmd := &cobra.Command{
		Use:   "list [provider]",
		Short: "List the models of a provider (default: current)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := openApp(ctx, cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()

			r := a.Resolver()
			if len(args) > 0 && args[0] != r.CurrentProvider() {
				printModels(cmd.OutOrStdout(), r.ListModels(ctx, args[0]), "")
				return nil
			}
			printModels(cmd.OutOrStdout(), r.Models(), r.CurrentModel())
			return nil
		},
	}

	useCmd := &cobra.Command{
		Use:   "use [model]",
		Short: "Pin a model to the most recent chat and make it the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := openApp(ctx, cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()

			acked, err := a.SelectModel(ctx, args[0])
			if err != nil {
				return err
			}
			if !acked {
				fmt.Fprintln(cmd.OutOrStdout(), warningStyle.Render("Backend did not confirm the model; it applies to this chat only."))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Using model %s.\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, useCmd)
	cmd.RunE = listCmd.RunE
	cmd.Args = cobra.MaximumNArgs(1)
	return cmd
}

// ---------------------------------------------------------------------------
// kb command
// ---------------------------------------------------------------------------

func kbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage the knowledge base",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Build the backend's vector database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := openApp(ctx, cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			count, ok := a.InitKnowledgeBase(ctx)
			if !ok {
				return errors.New("knowledge base initialization failed")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Knowledge base ready: %d chunks.\n", count)
			return nil
		},
	})
	return cmd
}

// ---------------------------------------------------------------------------
// config command
// ---------------------------------------------------------------------------

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg)
			data, _ := json.MarshalIndent(map[string]interface{}{
				"backend_url":     cfg.BackendURL,
				"request_timeout": cfg.RequestTimeout.String(),
				"provider":        cfg.Provider,
				"model":           cfg.Model,
				"data_dir":        cfg.DataDir,
				"store":           cfg.Store,
				"history_file":    cfg.HistoryFile,
				"log_level":       cfg.LogLevel,
				"log_format":      cfg.LogFormat,
				"config_file":     cfg.ConfigFile(),
			}, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			if err := cfg.Validate(); err != nil {
				fmt.Fprint(cmd.ErrOrStderr(), warningStyle.Render(err.Error()))
			}
			return nil
		},
	}

	cmd.AddCommand(
		showCmd,
		&cobra.Command{
			Use:   "precedence",
			Short: "Explain where configuration values come from",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprint(cmd.OutOrStdout(), config.GetConfigPrecedence())
			},
		},
	)

	// Default to show
	cmd.RunE = showCmd.RunE

	return cmd
}

// ---------------------------------------------------------------------------
// version command
// ---------------------------------------------------------------------------

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ragchat version %s (%s)\n", version, commit)
			fmt.Fprintf(cmd.OutOrStdout(), "go version %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
