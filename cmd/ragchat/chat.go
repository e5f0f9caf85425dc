package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/Dhanuzh/ragchat/internal/app"
	"github.com/Dhanuzh/ragchat/internal/session"
)

// ---------------------------------------------------------------------------
// Input history
// ---------------------------------------------------------------------------

// ChatCLI provides input history and line editing for the interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads its history file.
func NewChatCLI(historyFile string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	cli := &ChatCLI{
		line:        line,
		historyFile: historyFile,
	}
	cli.LoadHistory()
	return cli
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if c.historyFile == "" {
		return
	}
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history, readable by the owner only.
func (c *ChatCLI) SaveHistory() {
	if c.historyFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0755); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// ---------------------------------------------------------------------------
// Interactive loop
// ---------------------------------------------------------------------------

// chatLoop runs slash commands and questions against one session.
type chatLoop struct {
	ctx context.Context
	app *app.App
	out io.Writer
}

// runChat is the default command - starts the interactive chat
func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	loop := &chatLoop{ctx: ctx, app: a, out: cmd.OutOrStdout()}
	a.Engine().OnEvent(func(e session.Event) {
		if e.Type == session.EventSending {
			fmt.Fprintln(loop.out, infoStyle.Render("Thinking..."))
		}
	})

	cli := NewChatCLI(a.Config().HistoryFile)
	defer cli.Close()

	loop.printWelcome()

	for {
		input, err := cli.ReadInput(promptStyle.Render("ragchat> "))
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D or a closed stdin
			fmt.Fprintln(loop.out)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			keepGoing, err := loop.handleSlashCommand(input)
			if err != nil {
				fmt.Fprintf(loop.out, "%s %v\n", errorStyle.Render("[Error]"), err)
			}
			if !keepGoing {
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}

		loop.ask(input)
	}
}

// ask sends one question. Ctrl+C cancels the request in flight.
func (l *chatLoop) ask(question string) {
	ctx, stop := signal.NotifyContext(l.ctx, os.Interrupt)
	defer stop()

	res := l.app.Ask(ctx, question)
	switch res.Outcome {
	case session.OutcomeSkipped:
		return
	case session.OutcomeBusy:
		fmt.Fprintln(l.out, warningStyle.Render("A question is already in flight for this chat."))
		return
	case session.OutcomeFailed:
		fmt.Fprintln(l.out, errorStyle.Render(res.Message.Content))
		return
	}

	fmt.Fprintln(l.out, assistantStyle.Render("Assistant"))
	fmt.Fprintln(l.out, res.Message.Content)
	if n := len(res.Message.UsedChunks); n > 0 {
		fmt.Fprintln(l.out, infoStyle.Render(fmt.Sprintf("[%d context chunks, /context to view]", n)))
	}
	fmt.Fprintln(l.out)
}

// handleSlashCommand processes slash commands.
// Returns (keepGoing, error) where keepGoing=false means exit.
func (l *chatLoop) handleSlashCommand(input string) (bool, error) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return true, nil
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		l.printHelp()

	case "/quit", "/q", "/exit":
		return false, nil

	case "/new", "/n":
		chat := l.app.NewChat()
		fmt.Fprintf(l.out, "%s %s\n", commandStyle.Render("[New chat]"), chat.ID)
		printExamples(l.out)

	case "/chats":
		printChatList(l.out, l.app.Chats().List(), l.app.Chats().ActiveID())

	case "/use":
		if len(args) != 1 {
			return true, errors.New("usage: /use <number|id>")
		}
		return true, l.useChat(args[0])

	case "/show":
		chat, ok := l.app.Chats().Active()
		if !ok {
			return true, errors.New("no active chat")
		}
		printChat(l.out, chat)

	case "/providers":
		r := l.app.Resolver()
		printProviders(l.out, r.DisplayProviders(), r.CurrentProvider())

	case "/provider":
		if len(args) != 1 {
			fmt.Fprintf(l.out, "%s %s\n", infoStyle.Render("[Provider]"), commandStyle.Render(l.app.Resolver().CurrentProvider()))
			return true, nil
		}
		l.app.SwitchProvider(l.ctx, args[0])
		r := l.app.Resolver()
		fmt.Fprintf(l.out, "%s %s\n", commandStyle.Render("[Provider]"), r.CurrentProvider())
		printModels(l.out, r.Models(), r.CurrentModel())

	case "/models":
		r := l.app.Resolver()
		printModels(l.out, r.Models(), r.CurrentModel())

	case "/model", "/m":
		if len(args) != 1 {
			fmt.Fprintf(l.out, "%s %s\n", infoStyle.Render("[Model]"), commandStyle.Render(l.app.Resolver().CurrentModel()))
			return true, nil
		}
		acked, err := l.app.SelectModel(l.ctx, args[0])
		if err != nil {
			return true, err
		}
		if !acked {
			fmt.Fprintf(l.out, "%s backend did not confirm %s\n", warningStyle.Render("[Warning]"), args[0])
			return true, nil
		}
		fmt.Fprintf(l.out, "%s %s\n", commandStyle.Render("[Model]"), args[0])

	case "/select":
		if len(args) != 1 {
			return true, errors.New("usage: /select <message number>")
		}
		return true, l.selectMessage(args[0])

	case "/context", "/ctx":
		chatID := l.app.Chats().ActiveID()
		if chatID == "" {
			return true, errors.New("no active chat")
		}
		printChunks(l.out, l.app.Selector().ChunksFor(chatID))

	case "/examples":
		if len(args) == 0 {
			printExamples(l.out)
			return true, nil
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > len(examplePrompts) {
			return true, fmt.Errorf("example must be between 1 and %d", len(examplePrompts))
		}
		fmt.Fprintf(l.out, "%s %s\n", userStyle.Render("You"), examplePrompts[n-1])
		l.ask(examplePrompts[n-1])

	case "/init":
		count, ok := l.app.InitKnowledgeBase(l.ctx)
		if !ok {
			return true, errors.New("knowledge base initialization failed")
		}
		fmt.Fprintf(l.out, "%s %d chunks\n", commandStyle.Render("[Knowledge base]"), count)

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
	return true, nil
}

// useChat activates a chat by list number or id.
func (l *chatLoop) useChat(ref string) error {
	chatID := ref
	if n, err := strconv.Atoi(ref); err == nil {
		chats := l.app.Chats().List()
		if n < 1 || n > len(chats) {
			return fmt.Errorf("chat number must be between 1 and %d", len(chats))
		}
		chatID = chats[n-1].ID
	}

	if !l.app.SwitchChat(l.ctx, chatID) {
		return fmt.Errorf("chat not found: %s", ref)
	}
	chat, _ := l.app.Chats().Find(chatID)
	fmt.Fprintf(l.out, "%s %s\n", commandStyle.Render("[Chat]"), chat.Title)
	if len(chat.Messages) == 0 {
		printExamples(l.out)
	}
	return nil
}

// selectMessage makes a message of the active chat the one whose context
// is displayed.
func (l *chatLoop) selectMessage(ref string) error {
	chat, ok := l.app.Chats().Active()
	if !ok {
		return errors.New("no active chat")
	}
	n, err := strconv.Atoi(ref)
	if err != nil || n < 1 || n > len(chat.Messages) {
		return fmt.Errorf("message number must be between 1 and %d", len(chat.Messages))
	}

	l.app.Selector().RecordSelection(chat.ID, n-1)
	printChunks(l.out, l.app.Selector().ChunksFor(chat.ID))
	return nil
}

func (l *chatLoop) printWelcome() {
	cfg := l.app.Config()
	r := l.app.Resolver()

	fmt.Fprintln(l.out, headerStyle.Render("ragchat interactive chat"))
	fmt.Fprintln(l.out, infoStyle.Render(strings.Repeat("─", 30)))
	fmt.Fprintf(l.out, "%s %s\n", infoStyle.Render("Backend: "), cfg.BackendURL)
	fmt.Fprintf(l.out, "%s %s\n", infoStyle.Render("Provider:"), commandStyle.Render(r.CurrentProvider()))

	model := r.CurrentModel()
	if model == "" {
		model = warningStyle.Render("none")
	} else {
		model = commandStyle.Render(model)
	}
	fmt.Fprintf(l.out, "%s %s\n", infoStyle.Render("Model:   "), model)
	if len(r.Models()) == 0 {
		fmt.Fprintln(l.out, warningStyle.Render("No models available; check the provider's API key (/providers)."))
	}

	chat, ok := l.app.Chats().Active()
	if ok {
		fmt.Fprintf(l.out, "%s %s (%d messages)\n", infoStyle.Render("Chat:    "), chat.Title, len(chat.Messages))
	}
	fmt.Fprintln(l.out)
	if !ok || len(chat.Messages) == 0 {
		printExamples(l.out)
		fmt.Fprintln(l.out)
	}
	fmt.Fprintln(l.out, infoStyle.Render("Type your question and press Enter. Commands: /help, /quit"))
}

func (l *chatLoop) printHelp() {
	fmt.Fprintln(l.out, headerStyle.Render("Available Commands"))
	fmt.Fprintln(l.out, infoStyle.Render(strings.Repeat("─", 20)))

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/new", "Start a new chat"},
		{"/chats", "List chats (* marks the active one)"},
		{"/use <n|id>", "Switch to a chat"},
		{"/show", "Show the messages of the active chat"},
		{"/providers", "List providers"},
		{"/provider <id>", "Switch provider"},
		{"/models", "List models of the current provider"},
		{"/model <id>", "Pin a model to the active chat"},
		{"/select <n>", "Show the context of message n"},
		{"/context", "Show the context of the selected answer"},
		{"/examples [n]", "List or ask an example question"},
		{"/init", "Initialize the knowledge base"},
		{"/help", "Show this help"},
		{"/quit", "Exit"},
	}
	for _, c := range commands {
		fmt.Fprintf(l.out, "  %s %s\n",
			commandStyle.Render(fmt.Sprintf("%-16s", c.cmd)),
			infoStyle.Render(c.desc))
	}
}
