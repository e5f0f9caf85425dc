package main

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/Dhanuzh/ragchat/internal/backend"
	"github.com/Dhanuzh/ragchat/internal/session"
)

// examplePrompts are offered when the active chat has no messages yet.
var examplePrompts = []string{
	"¿Qué es una computadora y cuáles son sus partes esenciales?",
	"¿Cuál es la diferencia entre hardware y software?",
	"¿Qué es la arquitectura de von Neumann?",
	"¿Qué componentes tiene la unidad central de procesamiento (CPU)?",
}

func truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max-3]) + "..."
}

func printChatList(w io.Writer, chats []session.Chat, activeID string) {
	if len(chats) == 0 {
		fmt.Fprintln(w, "No chats yet.")
		return
	}

	fmt.Fprintf(w, "%-4s %-38s %-32s %-20s %-5s\n", "#", "ID", "Title", "Model", "Msgs")
	fmt.Fprintln(w, strings.Repeat("-", 102))
	for i, c := range chats {
		marker := " "
		if c.ID == activeID {
			marker = "*"
		}
		model := c.Model
		if model == "" {
			model = "-"
		}
		fmt.Fprintf(w, "%s%-3d %-38s %-32s %-20s %-5d\n",
			marker, i+1, c.ID, truncate(c.Title, 30), truncate(model, 20), len(c.Messages))
	}
}

func printChat(w io.Writer, chat session.Chat) {
	fmt.Fprintln(w, headerStyle.Render(chat.Title))
	model := chat.Model
	if model == "" {
		model = "(session default)"
	}
	fmt.Fprintf(w, "%s %s   %s %s\n", infoStyle.Render("ID:"), chat.ID, infoStyle.Render("Model:"), model)
	fmt.Fprintln(w)

	if len(chat.Messages) == 0 {
		fmt.Fprintln(w, infoStyle.Render("No messages yet."))
		return
	}
	for i, m := range chat.Messages {
		printMessage(w, i+1, m)
	}
}

func printMessage(w io.Writer, number int, m session.Message) {
	label := userStyle.Render("You")
	if m.Role == session.RoleAssistant {
		label = assistantStyle.Render("Assistant")
	}
	fmt.Fprintf(w, "%s %s\n", infoStyle.Render(fmt.Sprintf("[%d]", number)), label)
	fmt.Fprintln(w, m.Content)
	if len(m.UsedChunks) > 0 {
		fmt.Fprintln(w, infoStyle.Render(fmt.Sprintf("(%d context chunks)", len(m.UsedChunks))))
	}
	fmt.Fprintln(w)
}

func printChunks(w io.Writer, chunks []backend.UsedChunk) {
	if len(chunks) == 0 {
		fmt.Fprintln(w, infoStyle.Render("No context for this answer."))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Context (%d chunks)", len(chunks))))
	for _, c := range chunks {
		fmt.Fprintf(w, "%s %s\n", chunkIDStyle.Render(c.ID), truncate(c.ContentPreview, 160))
	}
}

func printProviders(w io.Writer, providers []backend.ProviderInfo, current string) {
	fmt.Fprintf(w, "  %-14s %-22s %-12s %s\n", "ID", "Name", "Configured", "Note")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, p := range providers {
		marker := " "
		if p.ID == current {
			marker = "*"
		}
		configured := commandStyle.Render("yes")
		if !p.Configured {
			configured = warningStyle.Render("no ")
		}
		fmt.Fprintf(w, "%s %-14s %-22s %-12s %s\n", marker, p.ID, p.DisplayName, configured, p.Message)
	}
}

func printModels(w io.Writer, models []backend.ModelInfo, current string) {
	if len(models) == 0 {
		fmt.Fprintln(w, warningStyle.Render("No models available."))
		return
	}
	for _, m := range models {
		marker := " "
		if m.ID == current {
			marker = "*"
		}
		if m.OwnedBy != "" {
			fmt.Fprintf(w, "%s %-40s %s\n", marker, m.ID, infoStyle.Render(m.OwnedBy))
		} else {
			fmt.Fprintf(w, "%s %s\n", marker, m.ID)
		}
	}
}

func printExamples(w io.Writer) {
	fmt.Fprintln(w, infoStyle.Render("Try one of these (/examples <n> to ask it):"))
	for i, p := range examplePrompts {
		fmt.Fprintf(w, "  %s %s\n", commandStyle.Render(fmt.Sprintf("%d.", i+1)), p)
	}
}
