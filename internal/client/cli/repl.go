package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL dispatches to. The real App
// type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool

	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Passwd(ctx context.Context) error

	List(ctx context.Context, args []string) error
	Cd(ctx context.Context, args []string) error
	Open(ctx context.Context, args []string) error
	Up(ctx context.Context, args []string) error
	Search(ctx context.Context, args []string) error
	Tab(ctx context.Context, args []string) error
	Refresh(ctx context.Context, args []string) error
	Mkdir(ctx context.Context, args []string) error
	Remove(ctx context.Context, args []string) error
	Move(ctx context.Context, args []string) error
	Rename(ctx context.Context, args []string) error
	Info(ctx context.Context, args []string) error

	Upload(ctx context.Context, args []string) error
	Uploads(ctx context.Context, args []string) error
	Pause(ctx context.Context, args []string) error
	Resume(ctx context.Context, args []string) error
	Cancel(ctx context.Context, args []string) error
	Download(ctx context.Context, args []string) error
	Link(ctx context.Context, args []string) error

	Share(ctx context.Context, args []string) error
	Unshare(ctx context.Context, args []string) error
	Users(ctx context.Context, args []string) error
	Groups(ctx context.Context, args []string) error
	Group(ctx context.Context, args []string) error
}

const (
	helpLoggedOut = "Available commands: register, login, help, exit"
	helpLoggedIn  = `Available commands:
  ls | cd <path> | open <folder> | up | search [term] | tab my|to|by | refresh
  mkdir <name> | rm <name> | mv <name> <folder> | rename <name> <new> | info <name>
  upload <paths...> | uploads | pause|resume|cancel <id> | download <name> | link <name>
  share <name> user|group <ids...> | unshare <name> <shareId> | users <prefix>
  groups | group create|rename|delete|members|add|remove ...
  passwd | logout | help | exit`
)

// runREPL reads commands from reader until EOF or "exit"/"quit". The first
// word selects the command; the rest are its arguments, with double quotes
// grouping words. Handler errors are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("gd %s> ", statusFn()))

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}

		parts, perr := splitArgs(strings.TrimSpace(line))
		if perr != nil {
			printlnFn("Error:", perr)
			continue
		}
		if len(parts) == 0 {
			continue
		}

		if quit := dispatch(ctx, a, parts[0], parts[1:]); quit {
			return
		}
	}
}

// dispatch runs one command and reports whether the REPL should stop.
func dispatch(ctx context.Context, a execIface, cmd string, args []string) bool {
	switch cmd {
	case "exit", "quit":
		printlnFn("Bye!")
		return true
	case "help":
		if a.isLoggedIn() {
			printlnFn(helpLoggedIn)
		} else {
			printlnFn(helpLoggedOut)
		}
		return false
	case "register":
		report(a.Register(ctx))
		return false
	case "login":
		report(a.Login(ctx))
		return false
	}

	handler, ok := commands[cmd]
	if !ok {
		printlnFn("Unknown command:", cmd)
		return false
	}
	if !a.isLoggedIn() {
		printlnFn("Please login first")
		return false
	}
	report(handler(a, ctx, args))
	return false
}

// handlerFn has the shape of an execIface method expression.
type handlerFn func(a execIface, ctx context.Context, args []string) error

var commands = map[string]handlerFn{
	"logout":   func(a execIface, ctx context.Context, _ []string) error { return a.Logout(ctx) },
	"passwd":   func(a execIface, ctx context.Context, _ []string) error { return a.Passwd(ctx) },
	"ls":       execIface.List,
	"l":        execIface.List,
	"cd":       execIface.Cd,
	"open":     execIface.Open,
	"up":       execIface.Up,
	"search":   execIface.Search,
	"tab":      execIface.Tab,
	"refresh":  execIface.Refresh,
	"mkdir":    execIface.Mkdir,
	"rm":       execIface.Remove,
	"mv":       execIface.Move,
	"rename":   execIface.Rename,
	"info":     execIface.Info,
	"upload":   execIface.Upload,
	"uploads":  execIface.Uploads,
	"pause":    execIface.Pause,
	"resume":   execIface.Resume,
	"cancel":   execIface.Cancel,
	"download": execIface.Download,
	"link":     execIface.Link,
	"share":    execIface.Share,
	"unshare":  execIface.Unshare,
	"users":    execIface.Users,
	"groups":   execIface.Groups,
	"group":    execIface.Group,
}

func report(err error) {
	if err != nil {
		printlnFn("Error:", err)
	}
}

// usageError is returned by handlers called with wrong arguments.
type usageError string

func (u usageError) Error() string { return "usage: " + string(u) }
