package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"inbox-autoresponder/internal/autoreply"
	"inbox-autoresponder/internal/config"
	"inbox-autoresponder/internal/dedup"
	"inbox-autoresponder/internal/emailprocessor"
	imapclient "inbox-autoresponder/internal/imap"
	"inbox-autoresponder/internal/logging"
	"inbox-autoresponder/internal/mailer"
	"inbox-autoresponder/internal/models"
	"inbox-autoresponder/internal/responder"
	"inbox-autoresponder/internal/status"
)

var (
	intervalFlag int
	noStartFlag  bool
)

// runLong doubles as the console help text
const runLong = `Log in, start polling and accept console commands on stdin:

  start | stop | toggle      control the poll worker
  interval <seconds>         change the poll interval (5-600)
  check                      run one scan now
  greet <to> [template] [name]
  status | templates | login | logout | help | quit`

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Log in and start the auto-responder console",
	Long:  runLong,
	Args:  cobra.NoArgs,
	RunE:  runRun,
}

func init() {
	runCmd.Flags().IntVarP(&intervalFlag, "interval", "i", 0, "Poll interval in seconds (overrides poll.interval)")
	runCmd.Flags().BoolVar(&noStartFlag, "no-start", false, "Log in without starting the poll worker")
	rootCmd.AddCommand(runCmd)
}

// app holds the wired engine for one console session
type app struct {
	ctrl     *responder.Controller
	smtp     *mailer.StandardSender
	term     *terminal
	events   *status.Channel
	relogin  atomic.Bool
	registry *dedup.Registry
}

func runRun(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("interval") {
		if err := config.ValidateInterval(intervalFlag); err != nil {
			return err
		}
		cfg.Poll.Interval = intervalFlag
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg)
	go a.render()

	creds, err := promptCredentials(ctx, a.term, a.smtp)
	if err != nil {
		return err
	}
	if err := a.ctrl.Login(creds); err != nil {
		return err
	}
	if !noStartFlag {
		if err := a.ctrl.Start(); err != nil {
			return err
		}
	}

	a.loop(ctx)
	a.ctrl.Shutdown()
	logging.Log.Info("Auto-responder stopped")
	return nil
}

func newApp(cfg *models.Config) *app {
	a := &app{
		smtp:     mailer.NewStandardSender(cfg.SMTP.Server, cfg.SMTP.Timeout),
		term:     newTerminal(os.Stdin),
		events:   status.NewChannel(256),
		registry: dedup.New(),
	}

	sink := eventSink(a.events, term.IsTerminal(int(os.Stdout.Fd())))

	dispatcher := autoreply.NewDispatcher(a.smtp, a.registry, sink, cfg.Reply)
	processor := emailprocessor.NewProcessor(imapclient.NewFactory(cfg.IMAP.Timeout), cfg.IMAP, dispatcher, a.registry, sink)

	a.ctrl = responder.New(cfg, responder.Deps{
		Scanner:  processor,
		Replies:  dispatcher,
		Greeter:  autoreply.NewGreeter(a.smtp, sink, cfg.Greeting.Subject),
		Registry: a.registry,
		Sink:     sink,
		Confirm: func(prompt string) bool {
			return a.term.confirm(context.Background(), prompt)
		},
		OnLoggedOut: func() {
			a.relogin.Store(true)
			fmt.Fprintln(os.Stderr, "Logged out. Press enter to log in again.")
		},
	})
	return a
}

// eventSink mirrors every event to the structured log. On a terminal the
// console also renders them on stdout, so the log moves to stderr.
func eventSink(console *status.Channel, tty bool) status.Sink {
	logSink := status.LogSink{Log: logging.Log}
	if !tty {
		return logSink
	}
	logging.Log.SetOutput(os.Stderr)
	return status.Multi(console, logSink)
}

func (a *app) render() {
	for e := range a.events.Events() {
		fmt.Fprintln(os.Stdout, e.String())
	}
}

// loop reads console commands until quit, EOF or a signal
func (a *app) loop(ctx context.Context) {
	for {
		if a.relogin.CompareAndSwap(true, false) {
			a.login(ctx)
		}

		line, err := a.term.ask(ctx, "> ", false)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				logging.Log.Errorf("Reading console input: %v", err)
			}
			return
		}
		if quit := a.handle(ctx, line); quit {
			return
		}
	}
}

func (a *app) login(ctx context.Context) {
	creds, err := promptCredentials(ctx, a.term, a.smtp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Login aborted: %v\n", err)
		return
	}
	if err := a.ctrl.Login(creds); err != nil {
		fmt.Fprintf(os.Stderr, "Login failed: %v\n", err)
	}
}

func (a *app) handle(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	var err error
	switch strings.ToLower(fields[0]) {
	case "start":
		err = a.ctrl.Start()
	case "stop":
		a.ctrl.RequestStop()
	case "toggle":
		err = a.ctrl.Toggle()
	case "interval":
		if len(fields) != 2 {
			err = fmt.Errorf("usage: interval <seconds>")
			break
		}
		var seconds int
		if seconds, err = strconv.Atoi(fields[1]); err == nil {
			err = a.ctrl.SetInterval(seconds)
		}
	case "check":
		err = a.ctrl.CheckNow()
	case "greet":
		err = a.greet(fields[1:])
	case "status":
		a.printStatus()
	case "templates":
		printTemplates(os.Stdout)
	case "login":
		if _, ok := a.ctrl.Credentials(); ok {
			err = models.ErrAlreadyAuthenticated
			break
		}
		a.login(ctx)
	case "logout":
		_, err = a.ctrl.Logout()
	case "help":
		fmt.Fprintln(os.Stdout, runLong)
	case "quit", "exit":
		return true
	default:
		err = fmt.Errorf("unknown command %q, try help", fields[0])
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return false
}

func (a *app) greet(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: greet <to> [template] [name]")
	}
	var template, name string
	if len(args) > 1 {
		template = args[1]
	}
	if len(args) > 2 {
		name = strings.Join(args[2:], " ")
	}
	return a.ctrl.SendGreeting(args[0], name, template)
}

func (a *app) printStatus() {
	st := a.ctrl.Stats()
	address := st.Address
	if address == "" {
		address = "(logged out)"
	}
	fmt.Fprintf(os.Stdout, "Account:      %s\n", address)
	fmt.Fprintf(os.Stdout, "State:        %s\n", st.State)
	fmt.Fprintf(os.Stdout, "Interval:     %ds\n", st.Interval)
	fmt.Fprintf(os.Stdout, "Replies sent: %d\n", st.RepliesSent)
	if st.LastReplied != "" {
		fmt.Fprintf(os.Stdout, "Last replied: %s at %s\n", st.LastReplied, st.LastRepliedAt.Format("15:04:05"))
	}
	if !st.LastChecked.IsZero() {
		fmt.Fprintf(os.Stdout, "Last check:   %s\n", st.LastChecked.Format("15:04:05"))
	}
	if n := a.events.Dropped(); n > 0 {
		fmt.Fprintf(os.Stdout, "Dropped events: %d\n", n)
	}
}
