// Command gita runs the Gita Companion API server and provides
// maintenance commands for verses, readers, feedback and exports.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/GitaCompanion/core/verse"
	"github.com/FocuswithJustin/GitaCompanion/internal/api"
	"github.com/FocuswithJustin/GitaCompanion/internal/auth"
	"github.com/FocuswithJustin/GitaCompanion/internal/export"
	"github.com/FocuswithJustin/GitaCompanion/internal/logging"
	"github.com/FocuswithJustin/GitaCompanion/internal/server"
	"github.com/FocuswithJustin/GitaCompanion/internal/store"
	"github.com/FocuswithJustin/GitaCompanion/internal/upstream"
	"github.com/FocuswithJustin/GitaCompanion/internal/validation"
)

// out receives command output.
var out io.Writer = os.Stdout

// Globals are flags shared by every command.
type Globals struct {
	DB string `name:"db" help:"SQLite database path" env:"GITA_DB_PATH" default:"./data/gita.db" type:"path"`
}

func (g *Globals) openStore(ctx context.Context) (*store.Store, error) {
	st, err := store.Open(ctx, g.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}

// CLI defines the command-line interface for gita.
var CLI struct {
	Globals

	Serve    ServeCmd      `cmd:"" help:"Start the REST API server"`
	Verse    VerseGroup    `cmd:"" help:"Verse navigation and lookup"`
	Daily    DailyCmd      `cmd:"" help:"Print the verse of the day"`
	User     UserGroup     `cmd:"" help:"Reader account management"`
	Feedback FeedbackGroup `cmd:"" help:"Reader feedback"`
	Export   ExportCmd     `cmd:"" help:"Export a reader's progress and bookmarks"`
	Version  VersionCmd    `cmd:"" help:"Print version information"`
}

// ServeCmd starts the REST API server. Flags override GITA_* variables.
type ServeCmd struct {
	Port       int    `help:"HTTP server port"`
	Secret     string `help:"JWT signing secret"`
	Upstream   string `help:"Verse-content service base URL"`
	RateLimit  int    `help:"Requests per minute per client (0 keeps the env value)"`
	Origins    string `help:"Comma-separated allowed CORS origins"`
	TrustProxy bool   `name:"trust-proxy" help:"Rate-limit by X-Forwarded-For (only behind a reverse proxy)"`
	LogLevel   string `help:"Log level (debug, info, warn, error)"`
	LogFormat  string `help:"Log format (json, text)"`
	TLSCert    string `name:"tls-cert" help:"TLS certificate file" type:"path"`
	TLSKey     string `name:"tls-key" help:"TLS key file" type:"path"`
}

// config merges the environment with the flags that were set.
func (c *ServeCmd) config(g *Globals) (api.Config, error) {
	cfg, err := api.LoadConfig()
	if err != nil {
		return api.Config{}, err
	}
	cfg.DBPath = g.DB
	if c.Port != 0 {
		cfg.Port = c.Port
	}
	if c.Secret != "" {
		cfg.JWTSecret = c.Secret
	}
	if c.Upstream != "" {
		cfg.UpstreamURL = c.Upstream
	}
	if c.RateLimit != 0 {
		cfg.RateLimitRequests = c.RateLimit
	}
	if origins := server.ParseOrigins(c.Origins); len(origins) > 0 {
		cfg.AllowedOrigins = origins
	}
	if c.TrustProxy {
		cfg.TrustProxyHeaders = true
	}
	if c.LogLevel != "" {
		cfg.LogLevel = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.LogFormat = c.LogFormat
	}
	if c.TLSCert != "" {
		cfg.TLS.CertFile = c.TLSCert
	}
	if c.TLSKey != "" {
		cfg.TLS.KeyFile = c.TLSKey
	}
	return cfg, nil
}

func (c *ServeCmd) Run(g *Globals) error {
	cfg, err := c.config(g)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return err
	}
	logging.InitLogger(level, format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return api.Start(ctx, cfg)
}

// VerseGroup contains verse navigation commands.
type VerseGroup struct {
	Next     VerseNextCmd     `cmd:"" help:"Print the verse after a reference"`
	Previous VersePreviousCmd `cmd:"" help:"Print the verse before a reference"`
	Random   VerseRandomCmd   `cmd:"" help:"Print a random verse reference"`
	Ref      VerseRefCmd      `cmd:"" help:"Parse a textual verse reference"`
	Show     VerseShowCmd     `cmd:"" help:"Fetch and print a verse"`
}

type VerseNextCmd struct {
	Ref string `arg:"" help:"Verse reference, e.g. 2:47"`
}

func (c *VerseNextCmd) Run() error {
	cur, err := verse.ParseReference(c.Ref)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, verse.Next(cur))
	return nil
}

type VersePreviousCmd struct {
	Ref string `arg:"" help:"Verse reference, e.g. 2:47"`
}

func (c *VersePreviousCmd) Run() error {
	cur, err := verse.ParseReference(c.Ref)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, verse.Previous(cur))
	return nil
}

type VerseRandomCmd struct{}

func (c *VerseRandomCmd) Run() error {
	fmt.Fprintln(out, verse.Random(nil))
	return nil
}

type VerseRefCmd struct {
	Text string `arg:"" help:"Reference text, e.g. \"BG 2.47\" or \"chapter 2 verse 47\""`
}

func (c *VerseRefCmd) Run() error {
	coord, err := verse.ParseReference(c.Text)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\t%s\n", coord, coord.SlokPath())
	return nil
}

// VerseShowCmd fetches a verse from the verse-content service.
type VerseShowCmd struct {
	Ref      string        `arg:"" help:"Verse reference, e.g. 2:47"`
	Upstream string        `help:"Verse-content service base URL" env:"GITA_UPSTREAM_URL" default:"https://vedicscriptures.github.io"`
	Timeout  time.Duration `help:"Request timeout" default:"5s"`
}

func (c *VerseShowCmd) Run() error {
	coord, err := verse.ParseReference(c.Ref)
	if err != nil {
		return err
	}
	client := upstream.New(upstream.Config{BaseURL: c.Upstream, Timeout: c.Timeout})
	merged, _, err := client.Verse(context.Background(), coord)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", coord, err)
	}
	return printJSON(merged)
}

// DailyCmd prints the global verse of the day, or a reader's stored one.
type DailyCmd struct {
	User string `help:"Reader email; prints that reader's assigned verse"`
	Date string `help:"UTC date (YYYY-MM-DD), default today"`
}

func (c *DailyCmd) Run(g *Globals) error {
	day := time.Now().UTC()
	if c.Date != "" {
		parsed, err := time.Parse(verse.DateLayout, c.Date)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", c.Date, err)
		}
		day = parsed
	}

	if c.User == "" {
		fmt.Fprintf(out, "%s\t%s\n", verse.DateString(day), verse.Daily("", day))
		return nil
	}

	ctx := context.Background()
	st, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	u, err := st.UserByEmail(ctx, c.User)
	if err != nil {
		return err
	}
	dv, err := st.AssignDailyVerse(ctx, u.ID, day)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\t%s\t%s\n", dv.Date, dv.Verse, u.Email)
	return nil
}

// UserGroup contains reader account commands.
type UserGroup struct {
	Create UserCreateCmd `cmd:"" help:"Create a reader account"`
	List   UserListCmd   `cmd:"" help:"List reader accounts"`
}

type UserCreateCmd struct {
	Name     string `required:"" help:"Display name"`
	Email    string `required:"" help:"Email address"`
	Password string `required:"" help:"Password" env:"GITA_USER_PASSWORD"`
}

func (c *UserCreateCmd) Run(g *Globals) error {
	if err := validation.Signup(c.Name, c.Email, c.Password); err != nil {
		return err
	}
	hash, err := auth.HashPassword(c.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	ctx := context.Background()
	st, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	u, err := st.CreateUser(ctx, c.Name, c.Email, hash)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Created user %s (%s)\n", u.Email, u.ID)
	return nil
}

type UserListCmd struct{}

func (c *UserListCmd) Run(g *Globals) error {
	ctx := context.Background()
	st, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	users, err := st.ListUsers(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tCURRENT\tSTREAK")
	for _, u := range users {
		p, err := st.GetProgress(ctx, u.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", u.ID, u.Name, u.Email, p.Current, p.StreakCount)
	}
	return tw.Flush()
}

// FeedbackGroup contains feedback commands.
type FeedbackGroup struct {
	List FeedbackListCmd `cmd:"" help:"List submitted feedback, newest first"`
}

type FeedbackListCmd struct {
	Limit int  `help:"Maximum entries to show (0 for all)" default:"20"`
	JSON  bool `name:"json" help:"Print as JSON"`
}

func (c *FeedbackListCmd) Run(g *Globals) error {
	ctx := context.Background()
	st, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.ListFeedback(ctx, c.Limit)
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(entries)
	}
	for _, f := range entries {
		from := f.Name
		if f.Email != "" {
			from += " <" + f.Email + ">"
		}
		fmt.Fprintf(out, "%s  %s\n  %s\n", f.CreatedAt.Format(time.RFC3339), from, f.Body)
	}
	return nil
}

// ExportCmd writes a reader's account data to a file, or prints a summary
// of an existing export.
type ExportCmd struct {
	Email   string `help:"Reader email"`
	Out     string `help:"Output file (.json or .json.xz)" type:"path"`
	Inspect string `help:"Summarize an existing export file instead" type:"existingfile"`
}

func (c *ExportCmd) Run(g *Globals) error {
	if c.Inspect != "" {
		doc, err := export.Read(c.Inspect)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Export of %s (%s)\n", doc.User.Email, doc.ExportedAt.Format(time.RFC3339))
		fmt.Fprintf(out, "  Current verse: %s\n", doc.Progress.Current)
		fmt.Fprintf(out, "  Streak: %d\n", doc.Progress.StreakCount)
		fmt.Fprintf(out, "  Verses read: %d\n", doc.Progress.TotalVersesRead)
		fmt.Fprintf(out, "  Bookmarks: %d\n", len(doc.Bookmarks))
		return nil
	}
	if c.Email == "" || c.Out == "" {
		return fmt.Errorf("--email and --out are required unless --inspect is given")
	}

	ctx := context.Background()
	st, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	doc, err := export.Build(ctx, st, c.Email, time.Now())
	if err != nil {
		return err
	}
	if err := export.Write(c.Out, doc); err != nil {
		return err
	}
	fmt.Fprintf(out, "Exported %s to %s (%d bookmarks)\n", doc.User.Email, c.Out, len(doc.Bookmarks))
	return nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Fprintf(out, "gita version %s\n", api.Version)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("gita"),
		kong.Description("Gita Companion - daily Bhagavad Gita reading server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Bind(&CLI.Globals),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
