package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"morvo/internal/store"
)

var historyLimit int

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			Padding(0, 1).
			MarginBottom(1)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	userMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 1)

	assistantMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true).
				Padding(0, 1)

	messageContentStyle = lipgloss.NewStyle().
				Padding(0, 2).
				MarginBottom(1)
)

var historyCmd = &cobra.Command{
	Use:   "history <conversation-id>",
	Short: "Print the stored messages of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := openStore(configPath)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := context.Background()
		conv, err := st.GetConversation(ctx, args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("conversation %s not found", args[0])
		}
		if err != nil {
			return err
		}
		msgs, err := st.RecentMessages(ctx, conv.ID, historyLimit)
		if err != nil {
			return err
		}

		fmt.Println(headerStyle.Render("Conversation " + conv.ID))
		fmt.Println(metaStyle.Render(fmt.Sprintf("user %s · %s · %s · %d messages · last %s",
			conv.UserID, conv.Metadata.BusinessType, conv.Metadata.Language,
			len(msgs), conv.LastMessageAt.Local().Format("2006-01-02 15:04"))))
		fmt.Println()

		for _, m := range msgs {
			label := userMessageStyle.Render("user")
			if m.Role == "assistant" {
				label = assistantMessageStyle.Render("assistant")
			}
			fmt.Printf("%s %s\n", label, metaStyle.Render(m.CreatedAt.Local().Format("15:04:05")))
			fmt.Println(messageContentStyle.Render(m.Content))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "Show only the most recent N messages (0 for all)")
	rootCmd.AddCommand(historyCmd)
}
