// Package relayctl implements the relay command line client: account
// commands, AI-assisted sending and an inbox reader that can speak messages.
package relayctl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"RelayMessenger/internal/assistant"
	"RelayMessenger/internal/client"
)

var (
	ErrUsage       = errors.New("usage")
	ErrNoAssistant = errors.New("gemini_api_key is not configured")
)

// API is the subset of the relay client the commands need.
type API interface {
	Signup(ctx context.Context, username, password, email string) error
	Login(ctx context.Context, username, password string) (client.LoginResult, error)
	Logout(ctx context.Context) error
	SendMessage(ctx context.Context, recipient, message string) (int64, error)
	Unread(ctx context.Context) ([]client.InboxMessage, error)
	MarkRead(ctx context.Context, id int64) error
	ConversationPage(ctx context.Context, username string, limit, offset int) (client.ConversationPage, error)
	Users(ctx context.Context) ([]client.Contact, error)
	Profile(ctx context.Context) (client.Profile, error)
	RegisterDevice(ctx context.Context, deviceToken, platform string) error
}

type App struct {
	API       API
	Completer assistant.Completer
	Listener  assistant.Listener
	Speaker   assistant.Speaker
	TokenFile string

	In     *bufio.Reader
	Out    io.Writer
	Logger *slog.Logger
}

const usage = `usage: relayctl [global flags] <command> [args]

commands:
  signup [username]                  create an account and log in
  login [username]                   log in and remember the session
  logout                             end the session
  send <command...>                  e.g. send tell bob the build is green
  say                                read one spoken command and send it
  inbox [--speak] [--mark-read]      show unread messages
  watch [--interval 5s] [--speak]    poll the inbox until interrupted
  history <user> [--limit n] [--offset n]
  users                              list other users
  whoami                             show your profile
  register-device <token> [--platform android|ios]
`

func (a *App) Usage() {
	fmt.Fprint(a.Out, usage)
}

// Run dispatches a single subcommand.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.Usage()
		return ErrUsage
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "signup":
		return a.signup(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "logout":
		return a.logout(ctx)
	case "send":
		return a.send(ctx, strings.Join(rest, " "))
	case "say":
		return a.say(ctx)
	case "inbox":
		return a.inbox(ctx, rest)
	case "watch":
		return a.watch(ctx, rest)
	case "history":
		return a.history(ctx, rest)
	case "users":
		return a.users(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "register-device":
		return a.registerDevice(ctx, rest)
	case "help", "-h", "--help":
		a.Usage()
		return nil
	default:
		a.Usage()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func (a *App) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.Logger
}

func (a *App) signup(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("signup", pflag.ContinueOnError)
	fs.SetOutput(a.Out)
	email := fs.String("email", "", "optional email address")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	username, err := a.usernameArg(fs.Args(), "Enter username (min 3 characters): ")
	if err != nil {
		return err
	}
	password, err := promptPassword(a.In, a.Out, "Enter password (min 6 characters): ")
	if err != nil {
		return err
	}

	if err := a.API.Signup(ctx, username, password, *email); err != nil {
		return fmt.Errorf("signup failed: %w", err)
	}
	fmt.Fprintln(a.Out, "Account created.")
	return a.loginWith(ctx, username, password)
}

func (a *App) login(ctx context.Context, args []string) error {
	username, err := a.usernameArg(args, "Enter username: ")
	if err != nil {
		return err
	}
	password, err := promptPassword(a.In, a.Out, "Enter password: ")
	if err != nil {
		return err
	}
	return a.loginWith(ctx, username, password)
}

func (a *App) loginWith(ctx context.Context, username, password string) error {
	res, err := a.API.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := saveToken(a.TokenFile, res.Token); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "Welcome %s!\n", res.Username)
	return nil
}

func (a *App) usernameArg(args []string, prompt string) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(args[0]), nil
	}
	return promptLine(a.In, a.Out, prompt)
}

func (a *App) logout(ctx context.Context) error {
	err := a.API.Logout(ctx)
	if err != nil && !errors.Is(err, client.ErrNoToken) && !client.IsUnauthorized(err) {
		return fmt.Errorf("logout failed: %w", err)
	}
	if err := removeToken(a.TokenFile); err != nil {
		return err
	}
	fmt.Fprintln(a.Out, "Logged out.")
	return nil
}

func (a *App) say(ctx context.Context) error {
	if a.Listener == nil {
		return errors.New("no listener configured")
	}
	fmt.Fprintln(a.Out, "Listening for your message...")
	heard, err := a.Listener.Listen(ctx)
	if err != nil {
		return fmt.Errorf("could not recognize any speech: %w", err)
	}
	fmt.Fprintf(a.Out, "You said: %s\n", heard)
	return a.send(ctx, heard)
}

func (a *App) send(ctx context.Context, input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("%w: send <command>", ErrUsage)
	}
	if a.Completer == nil {
		return ErrNoAssistant
	}

	cmd, err := assistant.ExtractCommand(ctx, a.Completer, input)
	if err != nil {
		var perr *assistant.ParseError
		if errors.As(err, &perr) {
			a.logger().Debug("unparseable completion", "raw", perr.Raw)
		}
		return err
	}

	fmt.Fprintf(a.Out, "Sending to %s: %s\n", cmd.Recipient, cmd.Message)
	id, err := a.API.SendMessage(ctx, cmd.Recipient, cmd.Message)
	if err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	fmt.Fprintf(a.Out, "Message %d sent.\n", id)
	return nil
}

type inboxOpts struct {
	speak    bool
	markRead bool
}

func (a *App) inbox(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("inbox", pflag.ContinueOnError)
	fs.SetOutput(a.Out)
	var opts inboxOpts
	fs.BoolVar(&opts.speak, "speak", false, "read messages aloud")
	fs.BoolVar(&opts.markRead, "mark-read", false, "mark shown messages as read")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	_, err := a.processInbox(ctx, opts)
	return err
}

// watch polls the inbox, speaking and marking messages as read, until ctx
// ends or the session is rejected.
func (a *App) watch(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	fs.SetOutput(a.Out)
	interval := fs.Duration("interval", 5*time.Second, "poll interval")
	speak := fs.Bool("speak", true, "read messages aloud")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if *interval <= 0 {
		return fmt.Errorf("%w: --interval must be positive", ErrUsage)
	}

	opts := inboxOpts{speak: *speak, markRead: true}
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		if _, err := a.processInbox(ctx, opts); err != nil {
			if client.IsUnauthorized(err) || errors.Is(err, client.ErrNoToken) {
				return err
			}
			a.logger().Warn("inbox poll failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (a *App) processInbox(ctx context.Context, opts inboxOpts) (int, error) {
	msgs, err := a.API.Unread(ctx)
	if err != nil {
		if client.IsUnauthorized(err) {
			return 0, fmt.Errorf("session expired, please login again: %w", err)
		}
		return 0, err
	}
	if len(msgs) == 0 {
		fmt.Fprintln(a.Out, "No new messages")
		return 0, nil
	}

	fmt.Fprintf(a.Out, "You have %d new message(s)!\n", len(msgs))
	for _, m := range msgs {
		fmt.Fprintf(a.Out, "[%s] %s: %s\n", m.Timestamp, m.Sender, m.Message)

		if opts.speak && a.Speaker != nil {
			text, ferr := assistant.FormatForSpeech(ctx, a.Completer, m.Sender, m.Message)
			if ferr != nil {
				a.logger().Warn("format for speech failed", "err", ferr, "message_id", m.ID)
			}
			if err := a.Speaker.Speak(ctx, text); err != nil {
				a.logger().Warn("speak failed", "err", err, "message_id", m.ID)
			}
		}

		if opts.markRead {
			if err := a.API.MarkRead(ctx, m.ID); err != nil {
				a.logger().Warn("mark read failed", "err", err, "message_id", m.ID)
			}
		}
	}
	return len(msgs), nil
}

func (a *App) history(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("history", pflag.ContinueOnError)
	fs.SetOutput(a.Out)
	limit := fs.Int("limit", 20, "messages per page")
	offset := fs.Int("offset", 0, "messages to skip from the newest")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: history <user>", ErrUsage)
	}

	page, err := a.API.ConversationPage(ctx, fs.Arg(0), *limit, *offset)
	if err != nil {
		return err
	}
	for _, m := range page.Conversation {
		who := m.Sender
		if m.IsOwnMessage {
			who = "you"
		}
		fmt.Fprintf(a.Out, "[%s] %s: %s\n", m.Timestamp, who, m.Message)
	}
	fmt.Fprintf(a.Out, "-- %d of %d", len(page.Conversation), page.TotalMessages)
	if page.HasMore {
		fmt.Fprintf(a.Out, ", older: --offset %d", *offset+len(page.Conversation))
	}
	fmt.Fprintln(a.Out)
	return nil
}

func (a *App) users(ctx context.Context) error {
	users, err := a.API.Users(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Fprintln(a.Out, "No other users yet")
		return nil
	}
	for _, u := range users {
		fmt.Fprintln(a.Out, u.Username)
	}
	return nil
}

func (a *App) whoami(ctx context.Context) error {
	p, err := a.API.Profile(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "%s (id %d)\n", p.Username, p.ID)
	if p.Email != "" {
		fmt.Fprintf(a.Out, "email: %s\n", p.Email)
	}
	fmt.Fprintf(a.Out, "member since: %s\n", p.CreatedAt)
	if p.LastLogin != nil {
		fmt.Fprintf(a.Out, "last login: %s\n", *p.LastLogin)
	}
	return nil
}

func (a *App) registerDevice(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("register-device", pflag.ContinueOnError)
	fs.SetOutput(a.Out)
	platform := fs.String("platform", "", "android or ios (default android)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: register-device <token>", ErrUsage)
	}
	if err := a.API.RegisterDevice(ctx, fs.Arg(0), *platform); err != nil {
		return err
	}
	fmt.Fprintln(a.Out, "Device registered.")
	return nil
}
