package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	sourcewatch "github.com/webeye/sourcewatch"
	"github.com/webeye/sourcewatch/adapters"
	"github.com/webeye/sourcewatch/auth"
)

// Run executes the sourcewatch command line with args.
func Run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.Execute()
}

type rootOptions struct {
	cfgPath string
	debug   bool
	stdout  io.Writer
	stderr  io.Writer
}

// env is what every subcommand runs against.
type env struct {
	cfg     *sourcewatch.Config
	store   *auth.FileStore
	service *sourcewatch.Service
	out     io.Writer
	color   bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stdout: stdout, stderr: stderr}
	cmd := &cobra.Command{
		Use:           "sourcewatch",
		Short:         "Query and manage monitored sources on a webeye server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	fs := cmd.PersistentFlags()
	fs.StringVarP(&opts.cfgPath, "config", "c", "", "config yaml path")
	fs.BoolVar(&opts.debug, "debug", false, "trace requests on stderr")

	cmd.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newRegisterCmd(opts),
		newBotTokenCmd(opts),
		newEndpointsCmd(opts),
		newSourcesCmd(opts),
		newReviewsCmd(opts),
		newReportsCmd(opts),
		newSubscriptionsCmd(opts),
		newAdminCmd(opts),
	)
	return cmd
}

func (o *rootOptions) env() (*env, error) {
	cfg, err := sourcewatch.LoadConfig(o.cfgPath)
	if err != nil {
		return nil, err
	}
	if o.debug {
		cfg.Debug = true
	}
	store := auth.NewFileStore(cfg.TokenFile)
	client := sourcewatch.NewClient(cfg, adapters.NewHTTPAdapter(http.DefaultClient), store,
		sourcewatch.WithLogger(sourcewatch.NewLogger(cfg.Debug, o.stderr)))
	return &env{
		cfg:     cfg,
		store:   store,
		service: sourcewatch.NewService(client),
		out:     o.stdout,
		color:   isTerminal(o.stdout),
	}, nil
}

// run wraps a subcommand body so it receives a ready env.
func (o *rootOptions) run(fn func(e *env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := o.env()
		if err != nil {
			return err
		}
		return fn(e, args)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) && strings.TrimSpace(os.Getenv("NO_COLOR")) == ""
}

func (e *env) printJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (e *env) colorStatus(status sourcewatch.SourceStatus) string {
	if !e.color {
		return string(status)
	}
	const (
		reset  = "\x1b[0m"
		red    = "\x1b[31m"
		green  = "\x1b[32m"
		yellow = "\x1b[33m"
		gray   = "\x1b[90m"
	)
	switch status {
	case sourcewatch.SourceUp:
		return green + string(status) + reset
	case sourcewatch.SourceDown:
		return red + string(status) + reset
	case sourcewatch.SourcePartial:
		return yellow + string(status) + reset
	default:
		return gray + string(status) + reset
	}
}

func parseUUID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(arg))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid uuid %q: %w", arg, err)
	}
	return id, nil
}

func newEndpointsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "endpoints",
		Short: "List the API operations this client knows",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(e *env, args []string) error {
			reg := e.service.Client().Registry()
			for _, name := range reg.Names() {
				ep, err := reg.Lookup(name)
				if err != nil {
					return err
				}
				method := ep.Method
				if method == "" {
					method = http.MethodPost
				}
				fmt.Fprintf(e.out, "%-22s %-8s %-6s %s%s\n", name, ep.Kind, method, e.cfg.BaseURL(), ep.Path)
			}
			return nil
		}),
	}
}
