// Command tt is a terminal client for the school timetable backend.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"go.uber.org/zap"

	"github.com/and161185/timetable-client/internal/app"
	"github.com/and161185/timetable-client/internal/config"
	"github.com/and161185/timetable-client/internal/errs"
	"github.com/and161185/timetable-client/internal/locale"
	"github.com/and161185/timetable-client/internal/logger"
	"github.com/and161185/timetable-client/internal/model"
	"github.com/and161185/timetable-client/internal/session"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	stdin  io.Reader = os.Stdin
)

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(p)
}

func printJSON(v any) {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func printAlert(a model.Alert) {
	fmt.Fprintf(stderr, "[%s] %s\n", a.Type, a.Message)
}

func usage() {
	fmt.Fprintf(stderr, `tt CLI
Usage:
  tt [-api URL] [-store file|memory|redis|postgres] [-profile name] <cmd> [args]

Commands:
  version
  login      -e <email> -p <password>
  logout
  status
  whoami
  refresh
  nav        <path>                              (applies route guard)
  get        <path>
  delete     <path>
  post|put|patch <path> -d <json> | -f <file>    (file '-' = stdin)
  list       <collection> [-q key=value]...
  show       <collection> <id>
  create     <collection> -d <json> | -f <file>
  update     <collection> <id> -d <json> | -f <file>
  rm         <collection> <id>
  lang       [code]
  watch                                          (file store only)

Environment: TT_API_URL, TT_STORE, TT_STORE_DIR, TT_PROFILE, TT_REDIS_URL,
TT_POSTGRES_DSN, TT_STORE_PASSPHRASE, TT_LOG_LEVEL, TT_ALERT_DURATION, TT_LANGUAGE.
`)
	os.Exit(2)
}

// ---- commands ----

func cmdLogin(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	e := fs.String("e", "", "email")
	p := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *e == "" || *p == "" {
		return errors.New("need -e and -p")
	}
	if err := a.Session.Login(ctx, *e, *p); err != nil {
		return err
	}
	if _, err := a.Router.Navigate(ctx, "/"); err != nil {
		return err
	}
	return cmdStatus(ctx, a)
}

func cmdLogout(ctx context.Context, a *app.App) error {
	a.Session.Logout(ctx)
	a.Router.Redirect(ctx, "/login")
	lang, _ := a.Lang.Get(ctx)
	fmt.Fprintln(stdout, a.Text.T(lang, "session.loggedOut"))
	return nil
}

func cmdStatus(ctx context.Context, a *app.App) error {
	lang, err := a.Lang.Get(ctx)
	if err != nil {
		return err
	}
	printStatus(a.Text.T, lang, a.Session.Snapshot(), a.Session.ExpiresAt)
	return nil
}

func printStatus(t func(lang, key string) string, lang string, st session.State, expires func() (time.Time, bool)) {
	switch {
	case st.IsAuthenticated():
		fmt.Fprintf(stdout, "%s: %s (%s)\n", t(lang, "session.loggedIn"), st.User.Email, st.User.Role)
	case st.Pending():
		fmt.Fprintf(stdout, "%s: %s\n", t(lang, "session.loggedIn"), t(lang, "common.loading"))
	default:
		fmt.Fprintln(stdout, t(lang, "session.notLoggedIn"))
		return
	}
	if st.TenantSlug != "" {
		fmt.Fprintf(stdout, "%s: %s\n", t(lang, "session.tenant"), st.TenantSlug)
	}
	if st.SchoolName != "" || st.SchoolID != 0 {
		fmt.Fprintf(stdout, "%s: %s (#%d)\n", t(lang, "session.school"), st.SchoolName, st.SchoolID)
	}
	if exp, ok := expires(); ok {
		fmt.Fprintf(stdout, "%s: %s\n", t(lang, "session.expires"), exp.UTC().Format(time.RFC3339))
	}
}

func cmdWhoami(ctx context.Context, a *app.App) error {
	if err := a.Session.FetchUser(ctx); err != nil {
		return err
	}
	printJSON(a.Session.User())
	return nil
}

func cmdNav(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 1 {
		return errors.New("need <path>")
	}
	got, err := a.Router.Navigate(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, got)
	return nil
}

func cmdCall(ctx context.Context, a *app.App, method string, args []string) error {
	fs := flag.NewFlagSet(method, flag.ContinueOnError)
	data := fs.String("d", "", "JSON body")
	dataFile := fs.String("f", "", "JSON body file ('-'=stdin)")
	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		return errors.New("need <path>")
	}
	path := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	var in any
	switch method {
	case "post", "put", "patch":
		body, err := jsonBody(*data, *dataFile)
		if err != nil {
			return err
		}
		in = body
	}

	var out json.RawMessage
	var err error
	switch method {
	case "get":
		err = a.API.Get(ctx, path, &out)
	case "delete":
		err = a.API.Delete(ctx, path, &out)
	case "post":
		err = a.API.Post(ctx, path, in, &out)
	case "put":
		err = a.API.Put(ctx, path, in, &out)
	case "patch":
		err = a.API.Patch(ctx, path, in, &out)
	}
	if err != nil {
		return err
	}
	if len(out) > 0 {
		printJSON(out)
	}
	return nil
}

func jsonBody(data, dataFile string) (json.RawMessage, error) {
	var body []byte
	switch {
	case data != "":
		body = []byte(data)
	case dataFile != "":
		b, err := readAll(dataFile)
		if err != nil {
			return nil, err
		}
		body = b
	default:
		return nil, errors.New("need -d or -f")
	}
	if !json.Valid(body) {
		return nil, errors.New("body is not valid JSON")
	}
	return json.RawMessage(body), nil
}

type queryFlag url.Values

func (q queryFlag) String() string { return url.Values(q).Encode() }

func (q queryFlag) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return fmt.Errorf("bad query %q, want key=value", s)
	}
	url.Values(q).Add(k, v)
	return nil
}

// cmdResource drives list/show/create/update/rm on one collection.
func cmdResource(ctx context.Context, a *app.App, cmd string, args []string) error {
	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		return errors.New("need <collection>")
	}
	res := a.Resources(args[0])
	args = args[1:]

	var id string
	switch cmd {
	case "show", "update", "rm":
		if len(args) < 1 || strings.HasPrefix(args[0], "-") {
			return errors.New("need <id>")
		}
		id, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	query := queryFlag{}
	var data, dataFile *string
	switch cmd {
	case "list":
		fs.Var(query, "q", "query parameter key=value (repeatable)")
	case "create", "update":
		data = fs.String("d", "", "JSON body")
		dataFile = fs.String("f", "", "JSON body file ('-'=stdin)")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	var out json.RawMessage
	var err error
	switch cmd {
	case "list":
		out, err = res.List(ctx, url.Values(query))
	case "show":
		out, err = res.Get(ctx, id)
	case "create", "update":
		body, berr := jsonBody(*data, *dataFile)
		if berr != nil {
			return berr
		}
		if cmd == "create" {
			out, err = res.Create(ctx, body)
		} else {
			out, err = res.Update(ctx, id, body)
		}
	case "rm":
		err = res.Delete(ctx, id)
	}
	if err != nil {
		return err
	}
	if len(out) > 0 {
		printJSON(out)
	}
	return nil
}

func cmdLang(ctx context.Context, a *app.App, args []string) error {
	if len(args) == 0 {
		cur, err := a.Lang.Get(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s (%s)\n", cur, strings.Join(locale.Supported(), ", "))
		return nil
	}
	got, err := a.Lang.Set(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, got)
	return nil
}

func cmdWatch(ctx context.Context, a *app.App) error {
	lang, _ := a.Lang.Get(ctx)
	printStatus(a.Text.T, lang, a.Session.Snapshot(), a.Session.ExpiresAt)
	return a.Watch(ctx, func(st session.State) {
		fmt.Fprintln(stdout, "--", time.Now().Format(time.TimeOnly))
		printStatus(a.Text.T, lang, st, a.Session.ExpiresAt)
	})
}

// ---- main ----

// main loads configuration, opens the session and dispatches subcommands.
func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fail(err)
	}
	cfg.BindFlags(flag.CommandLine)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	if cmd == "version" {
		fmt.Fprint(stdout, figure.NewFigure("timetable", "", true).String())
		fmt.Fprintf(stdout, "\ntt %s (%s)\n", version, buildDate)
		return
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fail(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cmd != "watch" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout+5*time.Second)
		defer cancel()
	}

	a, err := app.Open(ctx, cfg, log, app.WithAlertHook(printAlert))
	if err != nil {
		fail(err)
	}
	defer a.Close()
	log.Debug("session opened", zap.String("store", cfg.Store), zap.String("cmd", cmd))

	switch cmd {
	case "login":
		err = cmdLogin(ctx, a, args)
	case "logout":
		err = cmdLogout(ctx, a)
	case "status":
		err = cmdStatus(ctx, a)
	case "whoami":
		err = cmdWhoami(ctx, a)
	case "refresh":
		if err = a.Session.Refresh(ctx); err == nil {
			err = cmdStatus(ctx, a)
		}
	case "nav":
		err = cmdNav(ctx, a, args)
	case "get", "delete", "post", "put", "patch":
		err = cmdCall(ctx, a, cmd, args)
	case "list", "show", "create", "update", "rm":
		err = cmdResource(ctx, a, cmd, args)
	case "lang":
		err = cmdLang(ctx, a, args)
	case "watch":
		err = cmdWatch(ctx, a)
	default:
		usage()
	}
	if err != nil {
		a.Close()
		fail(err)
	}
}

// ---- helpers ----

func fail(err error) {
	var ae *errs.APIError
	switch {
	case errors.As(err, &ae):
		// already alerted by the gateway unless it was a 401 or login
		fmt.Fprintf(stderr, "http error: status=%d msg=%s\n", ae.Status, ae.Message)
	case errors.Is(err, errs.ErrRateLimited):
		fmt.Fprintln(stderr, err)
		os.Exit(3)
	default:
		fmt.Fprintln(stderr, err)
	}
	os.Exit(1)
}
