package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"inbox-autoresponder/internal/autoreply"
	"inbox-autoresponder/internal/logging"
	"inbox-autoresponder/internal/mailer"
	"inbox-autoresponder/internal/status"
)

var (
	greetTemplate string
	greetName     string
)

var greetCmd = &cobra.Command{
	Use:   "greet <to>",
	Short: "Send one greeting from a template",
	Args:  cobra.ExactArgs(1),
	RunE:  runGreet,
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the greeting templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printTemplates(cmd.OutOrStdout())
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that the SMTP server accepts the credentials",
	Args:  cobra.NoArgs,
	RunE:  runVerify,
}

func init() {
	greetCmd.Flags().StringVarP(&greetTemplate, "template", "t", autoreply.Greetings[0].Name, "Greeting template name")
	greetCmd.Flags().StringVarP(&greetName, "name", "n", "", "Recipient name (defaults to \"there\")")

	rootCmd.AddCommand(greetCmd)
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(verifyCmd)
}

func runGreet(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender := mailer.NewStandardSender(cfg.SMTP.Server, cfg.SMTP.Timeout)
	creds, err := promptCredentials(ctx, newTerminal(os.Stdin), sender)
	if err != nil {
		return err
	}

	greeter := autoreply.NewGreeter(sender, status.LogSink{Log: logging.Log}, cfg.Greeting.Subject)
	return greeter.Send(ctx, creds, args[0], greetName, greetTemplate)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender := mailer.NewStandardSender(cfg.SMTP.Server, cfg.SMTP.Timeout)
	creds, err := promptCredentials(ctx, newTerminal(os.Stdin), sender)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Credentials for %s accepted by %s\n", creds.Address, cfg.SMTP.Server)
	return nil
}

func printTemplates(w io.Writer) {
	for _, g := range autoreply.Greetings {
		text, _ := autoreply.RenderGreeting(g, "")
		first, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
		fmt.Fprintf(w, "%-14s %s\n", g.Name, first)
	}
}
