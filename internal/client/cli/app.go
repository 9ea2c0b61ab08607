package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophdrive/internal/client/config"
	"github.com/dmitrijs2005/gophdrive/internal/client/navigation"
	"github.com/dmitrijs2005/gophdrive/internal/client/services"
	"github.com/dmitrijs2005/gophdrive/internal/client/upload"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
)

// App is the interactive client: it owns the services and the terminal.
type App struct {
	config  *config.Config
	auth    services.AuthService
	browser services.Browser
	sharing services.SharingService
	groups  services.GroupService
	log     logging.Logger

	reader *bufio.Reader
	out    io.Writer

	orchestrator *upload.Orchestrator
	closers      []io.Closer
}

func newApp(cfg *config.Config, auth services.AuthService, browser services.Browser, sharing services.SharingService,
	groups services.GroupService, log logging.Logger, in io.Reader, out io.Writer) *App {
	a := &App{
		config:  cfg,
		auth:    auth,
		browser: browser,
		sharing: sharing,
		groups:  groups,
		log:     log,
		reader:  bufio.NewReader(in),
		out:     out,
	}
	browser.SetNotifier(a.notify)
	return a
}

func (a *App) notify(n services.Notification) {
	prefix := "[ok]"
	if n.Level == services.LevelError {
		prefix = "[error]"
	}
	printlnFn(prefix, n.Message)
}

func (a *App) isLoggedIn() bool {
	return a.auth.Current() != nil
}

func (a *App) confirm(question string) bool {
	return Confirm(a.reader, question, a.out)
}

// status is shown in the prompt: user, tab and current folder.
func (a *App) status() string {
	c := a.auth.Current()
	if c == nil {
		return ""
	}
	nav := a.browser.Navigator()
	return fmt.Sprintf("%s [%s] %s ", c.Username, tabLabel(nav.Tab()), nav.Input())
}

func tabLabel(t navigation.Tab) string {
	switch t {
	case navigation.TabSharedToMe:
		return "shared to me"
	case navigation.TabSharedByMe:
		return "shared by me"
	default:
		return "my files"
	}
}

// Run restores a saved login if there is one and runs the REPL until the
// user exits or ctx is done.
func (a *App) Run(ctx context.Context) {
	printlnFn("Welcome to gophdrive (type 'help' for commands)")

	if err := a.restore(ctx); err != nil {
		a.log.Info(ctx, "no saved login", "reason", err)
	}

	runREPL(ctx, a, a.status, a.reader)
}

// Close cancels unfinished uploads, waits for them to release their
// server-side sessions and closes the database and the log file.
func (a *App) Close() error {
	if a.orchestrator != nil {
		a.orchestrator.CancelAll()
		a.orchestrator.Wait()
	}

	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
