package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"inbox-autoresponder/internal/credentials"
	"inbox-autoresponder/internal/logging"
	"inbox-autoresponder/internal/models"
)

// verifyTimeout bounds the SMTP credential probe done at login
const verifyTimeout = 10 * time.Second

type request struct {
	prompt string
	secret bool
}

type answer struct {
	text string
	err  error
}

// terminal serializes every read from stdin on one goroutine so a blocked read
// never holds up the caller's cancellation
type terminal struct {
	requests chan request
	answers  chan answer
}

func newTerminal(in *os.File) *terminal {
	t := &terminal{
		requests: make(chan request),
		answers:  make(chan answer, 1),
	}
	go t.serve(in)
	return t
}

func (t *terminal) serve(in *os.File) {
	reader := bufio.NewReader(in)
	fd := int(in.Fd())

	for req := range t.requests {
		fmt.Fprint(os.Stderr, req.prompt)

		if req.secret && term.IsTerminal(fd) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			t.answers <- answer{text: string(b), err: err}
			continue
		}

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			t.answers <- answer{err: err}
			continue
		}
		t.answers <- answer{text: strings.TrimSpace(line)}
	}
}

// ask prints prompt and returns the next line. Secret prompts disable echo on a tty.
func (t *terminal) ask(ctx context.Context, prompt string, secret bool) (string, error) {
	select {
	case t.requests <- request{prompt: prompt, secret: secret}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case a := <-t.answers:
		return a.text, a.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// confirm asks a yes/no question, defaulting to no
func (t *terminal) confirm(ctx context.Context, prompt string) bool {
	text, err := t.ask(ctx, prompt+" [y/N] ", false)
	if err != nil {
		return false
	}
	switch strings.ToLower(text) {
	case "y", "yes":
		return true
	}
	return false
}

type verifier interface {
	Verify(ctx context.Context, creds models.Credentials) error
}

// promptCredentials collects and probes the session credentials. With the
// secret taken from the environment a failed probe is returned instead of retried.
func promptCredentials(ctx context.Context, t *terminal, v verifier) (models.Credentials, error) {
	address := addressFlag
	for {
		var err error
		if address == "" {
			if address, err = t.ask(ctx, "Email address: ", false); err != nil {
				return models.Credentials{}, err
			}
		}

		secret, fromEnv := os.LookupEnv(secretEnv)
		phone := phoneFlag
		if !fromEnv || secret == "" {
			fromEnv = false
			if secret, err = t.ask(ctx, "App password: ", true); err != nil {
				return models.Credentials{}, err
			}
			if phone == "" {
				if phone, err = t.ask(ctx, "Urgent contact phone (optional): ", false); err != nil && err != io.EOF {
					return models.Credentials{}, err
				}
			}
		}

		creds, err := credentials.New(address, secret, phone)
		if err == nil {
			logging.Log.Infof("Verifying credentials for %s", creds.Address)
			vctx, cancel := context.WithTimeout(ctx, verifyTimeout)
			err = v.Verify(vctx, creds)
			cancel()
		}
		if err == nil {
			return creds, nil
		}
		if fromEnv || ctx.Err() != nil {
			return models.Credentials{}, err
		}

		fmt.Fprintf(os.Stderr, "Login failed (%s): %v\n", models.Kind(err), err)
		address = ""
	}
}
