package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/codeready-toolchain/storeassist/pkg/attachment"
	"github.com/codeready-toolchain/storeassist/pkg/host"
	"github.com/codeready-toolchain/storeassist/pkg/models"
	"github.com/codeready-toolchain/storeassist/pkg/remote"
	"github.com/codeready-toolchain/storeassist/pkg/session"
)

const helpText = `Commands:
  /product <id> [title]     talk about a product
  /category <id> [title]    talk about a category
  /agent                    store-wide assistant
  /new                      start a new chat for the current entity
  /attach <path>...         queue files for the next message
  /apply <id>|all           apply a suggestion
  /discard <id>|all         discard a suggestion
  /option <n>               pick quick option n
  /yes, /no                 answer a research question
  /image <action> <url>     save_to_library, set_featured or set_thumbnail
  /state                    show the session state
  /quit                     exit
Anything else is sent as a message.`

var errUsage = errors.New("usage")

// console turns input lines into manager calls. Turns run in the background
// so the prompt stays responsive; the manager rejects overlapping sends.
type console struct {
	manager *session.Manager
	mem     *host.Memory
	out     io.Writer
	logger  *slog.Logger

	turns sync.WaitGroup
}

func newConsole(manager *session.Manager, mem *host.Memory, out io.Writer, logger *slog.Logger) *console {
	if logger == nil {
		logger = slog.Default()
	}
	return &console{manager: manager, mem: mem, out: out, logger: logger.With("component", "console")}
}

// handle runs one input line and reports whether the console should exit.
func (c *console) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		c.background(ctx, func(ctx context.Context) error {
			return c.manager.SendMessage(ctx, line, "")
		})
		return false
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	if cmd == "/quit" || cmd == "/exit" {
		return true
	}
	if err := c.command(ctx, cmd, args); err != nil {
		c.printError(err)
	}
	return false
}

func (c *console) command(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "/help":
		_, _ = fmt.Fprintln(c.out, helpText)
		return nil

	case "/product", "/category":
		if len(args) == 0 {
			return fmt.Errorf("%w: %s <id> [title]", errUsage, cmd)
		}
		entity := &models.Entity{
			Type:   models.EntityType(strings.TrimPrefix(cmd, "/")),
			ID:     args[0],
			Title:  strings.Join(args[1:], " "),
			Fields: map[string]any{},
		}
		if stored, ok := c.mem.Entity(entity.Ref()); ok {
			entity.Fields = stored.Fields
			if entity.Title == "" {
				entity.Title = stored.Title
			}
		} else {
			c.mem.PutEntity(entity)
		}
		return c.manager.SelectEntity(ctx, entity)

	case "/agent":
		return c.manager.SelectEntity(ctx, &models.Entity{Type: models.EntityTypeAgent})

	case "/new":
		return c.manager.NewChat(ctx)

	case "/attach":
		return c.attach(args)

	case "/apply", "/discard":
		if len(args) != 1 {
			return fmt.Errorf("%w: %s <id>|all", errUsage, cmd)
		}
		return c.resolveSuggestion(ctx, cmd == "/apply", args[0])

	case "/option":
		if len(args) != 1 {
			return fmt.Errorf("%w: /option <n>", errUsage)
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("%w: option must be a positive number", errUsage)
		}
		c.background(ctx, func(ctx context.Context) error {
			return c.manager.SelectOption(ctx, n-1)
		})
		return nil

	case "/yes", "/no":
		yes := cmd == "/yes"
		c.background(ctx, func(ctx context.Context) error {
			return c.manager.AnswerConfirmation(ctx, yes)
		})
		return nil

	case "/image":
		if len(args) != 2 {
			return fmt.Errorf("%w: /image <action> <url>", errUsage)
		}
		if err := c.manager.ImageAction(ctx, args[1], models.ImageAction(args[0])); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(c.out, "Image action %s done.\n", args[0])
		return nil

	case "/state":
		c.printState(c.manager.Snapshot())
		return nil
	}
	return fmt.Errorf("unknown command %s (try /help)", cmd)
}

func (c *console) attach(paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("%w: /attach <path>...", errUsage)
	}
	files := make([]attachment.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		files = append(files, attachment.File{Name: filepath.Base(p), Data: data})
	}
	for _, r := range c.manager.AddFiles(files) {
		color.New(color.FgYellow).Fprintf(c.out, "Skipped %s\n", r.Error())
	}
	return nil
}

func (c *console) resolveSuggestion(ctx context.Context, apply bool, id string) error {
	switch {
	case id == "all" && apply:
		return c.manager.ApplyAllSuggestions(ctx)
	case id == "all":
		return c.manager.DiscardAllSuggestions(ctx)
	case apply:
		return c.manager.ApplySuggestion(ctx, id)
	default:
		return c.manager.DiscardSuggestion(ctx, id)
	}
}

// background runs a turn without blocking the input loop. Turn failures are
// already rendered from the turn.error notification.
func (c *console) background(ctx context.Context, fn func(ctx context.Context) error) {
	c.turns.Add(1)
	go func() {
		defer c.turns.Done()
		err := fn(ctx)
		switch {
		case err == nil, errors.Is(err, context.Canceled):
		case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrNoSession),
			errors.Is(err, session.ErrEmptyMessage), errors.Is(err, session.ErrNoOption):
			c.printError(err)
		default:
			c.logger.Debug("Turn failed", "error", err)
		}
	}()
}

func (c *console) wait() {
	c.turns.Wait()
}

func (c *console) printError(err error) {
	msg := err.Error()
	var apiErr *remote.APIError
	if errors.As(err, &apiErr) || errors.Is(err, remote.ErrTransport) || errors.Is(err, remote.ErrMalformedResponse) {
		msg = remote.UserMessage(err)
	}
	color.New(color.FgRed).Fprintf(c.out, "Error: %s\n", msg)
}

func (c *console) printState(st session.State) {
	if st.SessionID == "" {
		_, _ = fmt.Fprintln(c.out, "No active session. Use /product, /category or /agent.")
		return
	}
	bold := color.New(color.Bold)
	bold.Fprintf(c.out, "%s", st.Title)
	_, _ = fmt.Fprintf(c.out, " (%s, session %s)\n", st.Entity.Type, st.SessionID)
	_, _ = fmt.Fprintf(c.out, "Messages: %d, tokens used: %d\n", len(st.Messages), st.Usage.Total())
	for _, g := range st.Groups {
		_, _ = fmt.Fprintf(c.out, "Pending %s (%s):\n", g.Key.Field, g.OptionsLabel())
		for _, s := range g.Suggestions {
			_, _ = fmt.Fprintf(c.out, "  [%s] %v\n", s.ID, s.SuggestedValue)
		}
	}
	for i, opt := range st.Options {
		_, _ = fmt.Fprintf(c.out, "Option %d: %s\n", i+1, opt)
	}
	if st.BalanceKnown {
		_, _ = fmt.Fprintf(c.out, "Balance: %.2f\n", st.Balance)
	}
}
