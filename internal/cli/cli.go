// Package cli implements taskflowctl, a terminal dashboard driving the
// optimistic task store.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"taskflow/internal/client"
	"taskflow/internal/model"
)

// Exit codes.
const (
	ExitOK        = 0
	ExitUserError = 1
	ExitAuth      = 2
	ExitBackend   = 3
)

const usage = `Usage: taskflowctl [flags] <command> [args]

Commands:
  register <full name>         create an account and sign in
  dashboard [status]           list tasks (ALL, TODO, IN_PROGRESS, DONE) with stats
  add <title> [priority]       create a task (LOW, MEDIUM, HIGH)
  set <ref> <status>           change a task's status
  rename <ref> <title>         change a task's title
  rm <ref>                     delete a task

<ref> is the row number shown by dashboard or a task id.

Flags:
  -url       API base URL (env TASKFLOW_URL, default http://localhost:8080/api)
  -email     account email (env TASKFLOW_EMAIL)
  -password  account password (env TASKFLOW_PASSWORD)
`

// Run executes one command and returns the process exit code.
func Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("taskflowctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	baseURL := fs.String("url", envOr("TASKFLOW_URL", "http://localhost:8080/api"), "")
	email := fs.String("email", os.Getenv("TASKFLOW_EMAIL"), "")
	password := fs.String("password", os.Getenv("TASKFLOW_PASSWORD"), "")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(errOut, "error: %v\n\n%s", err, usage)
		return ExitUserError
	}

	rest := fs.Args()
	if len(rest) == 0 || rest[0] == "help" {
		fmt.Fprint(out, usage)
		return ExitOK
	}

	api, err := client.NewHTTPClient(*baseURL, nil)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return ExitUserError
	}

	var session *client.Session
	if rest[0] == "register" {
		name := strings.Join(rest[1:], " ")
		session, err = api.Register(ctx, *email, *password, name)
	} else {
		session, err = api.Login(ctx, *email, *password)
	}
	if err != nil {
		return report(errOut, err)
	}

	store, err := session.NewStore(client.WithNotifier(client.NotifierFunc(func(n client.Notification) {
		if n.Level == client.LevelError {
			fmt.Fprintf(errOut, "%s: %v\n", n.Message, n.Err)
			return
		}
		fmt.Fprintln(out, n.Message)
	})))
	if err != nil {
		return report(errOut, err)
	}
	if err := store.Refresh(ctx); err != nil {
		return exitCode(err)
	}

	cmd := &command{store: store, out: out, errOut: errOut}
	switch rest[0] {
	case "register":
		fmt.Fprintf(out, "Welcome, %s!\n", session.User().FullName)
		return ExitOK
	case "dashboard":
		return cmd.dashboard(rest[1:])
	case "add":
		return cmd.add(ctx, rest[1:])
	case "set":
		return cmd.set(ctx, rest[1:])
	case "rename":
		return cmd.rename(ctx, rest[1:])
	case "rm":
		return cmd.remove(ctx, rest[1:])
	default:
		fmt.Fprintf(errOut, "error: unknown command: %s\n", rest[0])
		return ExitUserError
	}
}

type command struct {
	store  *client.Store
	out    io.Writer
	errOut io.Writer
}

func (c *command) dashboard(args []string) int {
	if len(args) > 0 {
		if err := c.store.SetFilter(client.Filter(strings.ToUpper(args[0]))); err != nil {
			return report(c.errOut, err)
		}
	}
	all := c.store.Tasks()
	view := c.store.View()
	fmt.Fprint(c.out, renderDashboard(c.out, view, all))
	return ExitOK
}

func (c *command) add(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(c.errOut, "error: add requires a title")
		return ExitUserError
	}
	fields := client.TaskFields{Title: args[0]}
	if len(args) > 1 {
		fields.Priority = model.Priority(strings.ToUpper(args[1]))
	}
	return outcomeCode(c.store.Create(ctx, fields))
}

func (c *command) set(ctx context.Context, args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(c.errOut, "error: set requires <ref> <status>")
		return ExitUserError
	}
	id, ok := c.resolve(args[0])
	if !ok {
		return ExitUserError
	}
	status := model.Status(strings.ToUpper(args[1]))
	return outcomeCode(c.store.Update(ctx, id, client.TaskPatch{Status: &status}))
}

func (c *command) rename(ctx context.Context, args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(c.errOut, "error: rename requires <ref> <title>")
		return ExitUserError
	}
	id, ok := c.resolve(args[0])
	if !ok {
		return ExitUserError
	}
	title := strings.Join(args[1:], " ")
	return outcomeCode(c.store.Update(ctx, id, client.TaskPatch{Title: &title}))
}

func (c *command) remove(ctx context.Context, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(c.errOut, "error: rm requires <ref>")
		return ExitUserError
	}
	id, ok := c.resolve(args[0])
	if !ok {
		return ExitUserError
	}
	return outcomeCode(c.store.Delete(ctx, id))
}

// resolve maps a 1-based row number or a raw id to a task id.
func (c *command) resolve(ref string) (client.TaskID, bool) {
	tasks := c.store.Tasks()
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(tasks) {
		return tasks[n-1].ID, true
	}
	for _, t := range tasks {
		if id, ok := t.ID.ServerID(); ok && id == ref {
			return t.ID, true
		}
	}
	fmt.Fprintf(c.errOut, "error: no task %q\n", ref)
	return client.TaskID{}, false
}

func outcomeCode(o client.Outcome) int {
	if o.OK() {
		return ExitOK
	}
	return exitCode(o.Err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, client.ErrAuth):
		return ExitAuth
	case errors.Is(err, client.ErrValidation), errors.Is(err, client.ErrNotFound), errors.Is(err, client.ErrForbidden):
		return ExitUserError
	default:
		return ExitBackend
	}
}

func report(errOut io.Writer, err error) int {
	fmt.Fprintf(errOut, "error: %v\n", err)
	return exitCode(err)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
