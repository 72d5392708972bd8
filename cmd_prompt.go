package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var promptName string

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Manage the companion's system template",
}

var promptSetCmd = &cobra.Command{
	Use:   "set <file|text>",
	Short: "Store a new active version of the system template",
	Long: `Store a new version of the system template and make it the only active
one. The argument is read as a file when one exists at that path, and used
as the template text otherwise. The template should contain {{context}}
only if intent templates are expected to reuse it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, cfg, err := openStore(configPath)
		if err != nil {
			return err
		}
		defer st.Close()

		content := args[0]
		if data, err := os.ReadFile(args[0]); err == nil {
			content = string(data)
		}
		content = strings.TrimSpace(content)
		if content == "" {
			return fmt.Errorf("empty template")
		}

		name := promptName
		if name == "" {
			name = cfg.Companion.PromptName
		}
		p, err := st.SavePrompt(context.Background(), name, content)
		if err != nil {
			return err
		}
		fmt.Printf("%s version %d is now active\n", p.Name, p.Version)
		return nil
	},
}

var promptShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active system template",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, cfg, err := openStore(configPath)
		if err != nil {
			return err
		}
		defer st.Close()

		name := promptName
		if name == "" {
			name = cfg.Companion.PromptName
		}
		p, err := st.ActivePrompt(context.Background(), name)
		if err != nil {
			return err
		}
		if p == nil {
			fmt.Println(metaStyle.Render("no stored template, using the built-in default"))
			return nil
		}
		fmt.Println(headerStyle.Render(fmt.Sprintf("%s v%d", p.Name, p.Version)))
		fmt.Println(p.Content)
		return nil
	},
}

func init() {
	promptCmd.PersistentFlags().StringVar(&promptName, "name", "", "Template name (defaults to companion.prompt_name)")
	promptCmd.AddCommand(promptSetCmd, promptShowCmd)
	rootCmd.AddCommand(promptCmd)
}
