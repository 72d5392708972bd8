package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"morvo/internal/channel"
)

var chatUser string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the companion in the terminal",
	Long: `Read messages from standard input and print the companion's replies.
The stored user id is "console:<user>". All lines of one session share a
conversation. The session ends at end of input or on interrupt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := NewApp(configPath)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		console := channel.NewConsoleChannel(os.Stdin, os.Stdout, chatUser, app.cfg.Companion.Name)
		app.chanMgr.Register(console)
		app.chanMgr.Route(ctx, app.companion)
		if err := app.chanMgr.StartAll(ctx); err != nil {
			app.Close(context.Background())
			return err
		}

		select {
		case <-console.Done():
		case <-ctx.Done():
		}
		app.Close(context.Background())

		if id := app.chanMgr.Conversation(console.Name(), "console", console.UserID()); id != "" {
			fmt.Fprintf(os.Stdout, "\n%s\n", metaStyle.Render("conversation "+id))
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatUser, "user", "u", "local", "Local user name")
	rootCmd.AddCommand(chatCmd)
}
