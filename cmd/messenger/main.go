package main

import (
	"bufio"
	"context"
	"errors"
	"estate-chat/auth"
	chaterrors "estate-chat/errors"
	"estate-chat/infrastructure/http/client"
	"estate-chat/messenger"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mama165/sdk-go/logs"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const usage = "Commands: /list, /open <user id>, /close, /quit. Any other line is sent to the open conversation."

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Messenger error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	config, err := LoadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := client.New(config.ServerURL, log, config.Timeout)
	if err != nil {
		return exitConfig, err
	}
	if err := authenticate(ctx, backend, config); err != nil {
		return exitRuntime, err
	}

	page, err := messenger.NewPage(ctx, backend, log, config.To, messenger.Options{
		PollInterval: config.PollInterval,
		Mode:         messenger.ParseReconcileMode(config.Reconcile),
	})
	var loginErr *messenger.LoginRequiredError
	if errors.As(err, &loginErr) {
		return exitRuntime, fmt.Errorf("session rejected, log in again (%s)", loginErr.RedirectURL)
	}
	if err != nil {
		return exitRuntime, err
	}
	defer page.Close()

	v := view{out: os.Stdout, userID: page.UserID, colours: config.Colours}
	if err := page.Load(ctx, config.To); err != nil {
		v.info("Conversation unavailable for now, retrying in the background: %v", err)
	}
	v.info("Logged in as %s. %s", page.UserID, usage)
	v.conversations(page.Conversations.Items())
	if page.Thread.Counterpart() != "" {
		v.thread(page.Thread.Counterpart(), page.Thread.Messages())
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case <-page.Thread.Changes():
			if counterpart := page.Thread.Counterpart(); counterpart != "" {
				v.thread(counterpart, page.Thread.Messages())
			}
		case <-page.Conversations.Changes():
			// Redrawn on /list only, the thread view owns the screen
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if quit := handle(ctx, page, v, line); quit {
				return exitOK, nil
			}
		}
	}
}

// authenticate logs in, and registers first when MESSENGER_NAME is set and the account is unknown.
func authenticate(ctx context.Context, backend *client.Client, config Config) error {
	_, err := backend.Login(ctx, auth.LoginRequest{Email: config.Email, Password: config.Password})
	if err == nil {
		return nil
	}
	if config.Name == "" || !chaterrors.Is(err, chaterrors.ErrUnauthenticated) {
		return fmt.Errorf("login failed: %w", err)
	}
	if _, err := backend.Register(ctx, auth.RegisterRequest{Email: config.Email, Password: config.Password, Name: config.Name}); err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	return nil
}

func handle(ctx context.Context, page *messenger.Page, v view, line string) bool {
	command, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch command {
	case "":
		return false
	case "/quit":
		return true
	case "/list":
		v.conversations(page.Conversations.Items())
	case "/close":
		page.Thread.Close()
	case "/open":
		counterpart := strings.TrimSpace(arg)
		if counterpart == "" {
			v.info(usage)
			return false
		}
		if err := page.Thread.Open(ctx, counterpart); err != nil {
			v.info("Conversation unavailable for now, retrying in the background: %v", err)
		}
	default:
		page.Composer.SetDraft(line)
		if _, err := page.Composer.Send(ctx); err != nil {
			if chaterrors.Is(err, chaterrors.ErrNothingToSend) {
				v.info("Open a conversation first with /open <user id>")
				return false
			}
			v.info("Message not sent: %v", err)
		}
	}
	return false
}
