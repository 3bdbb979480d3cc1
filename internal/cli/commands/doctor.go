package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/lusque/internal/artifact"
	"github.com/leapstack-labs/lusque/internal/cli/config"
	"github.com/leapstack-labs/lusque/internal/cli/output"
	"github.com/leapstack-labs/lusque/internal/native"
	"github.com/leapstack-labs/lusque/internal/state"
)

// Check statuses.
const (
	checkPass = "pass"
	checkFail = "fail"
	checkSkip = "skip"
)

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Platform string        `json:"platform"`
	Library  string        `json:"library"`
	Checks   []DoctorCheck `json:"checks"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
}

// DoctorCheck is the result of one check.
type DoctorCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`

	err error
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the compiler library can be extracted and loaded",
		Long: `Run the bootstrap sequence up to, but not including, the compile call.

Checks:
  - platform    the dynamic loader is supported on this OS
  - artifact    the compiler library is embedded (or --library exists)
  - temp_dir    the temporary directory is writable
  - materialize the library extracts and its digest matches
  - load        the library loads
  - symbol      the compile entry point resolves
  - history     the invocation history database opens

A check that cannot run because an earlier one failed is skipped. The
command exits with the code of the first failing stage.`,
		Example: `  lusque doctor
  lusque doctor -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd)
		},
	}
}

func runDoctor(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	out := runDoctorChecks(cmdCtx.Cfg, artifactSource(), nativeLoader(), cmdCtx.Logger)

	var renderErr error
	switch r.EffectiveMode() {
	case output.ModeJSON:
		renderErr = r.JSON(out)
	case output.ModeMarkdown:
		renderDoctorMarkdown(r, out)
	default:
		renderDoctorText(r, out)
	}
	if renderErr != nil {
		return renderErr
	}

	for _, c := range out.Checks {
		if c.Status == checkFail {
			return fmt.Errorf("%d doctor check(s) failed: %w", out.Failed, c.err)
		}
	}
	return nil
}

// runDoctorChecks runs every check in order, skipping those whose
// prerequisites failed.
func runDoctorChecks(cfg *config.Config, src artifact.Source, loader native.Loader, logger *slog.Logger) *DoctorOutput {
	out := &DoctorOutput{
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
		Library:  "embedded " + src.Name,
	}
	if cfg.Library != "" {
		out.Library = cfg.Library
	}
	add := func(c DoctorCheck) bool {
		if c.err != nil {
			c.Status = checkFail
			c.Detail = c.err.Error()
		}
		out.Checks = append(out.Checks, c)
		return c.Status == checkPass
	}
	skip := func(names ...string) {
		for _, n := range names {
			add(DoctorCheck{Name: n, Status: checkSkip})
		}
	}

	// platform
	platformOK := true
	if !native.Supported() {
		platformOK = add(DoctorCheck{Name: "platform", err: fmt.Errorf("%w: %s", native.ErrUnsupportedPlatform, out.Platform)})
	} else {
		add(DoctorCheck{Name: "platform", Status: checkPass, Detail: out.Platform})
	}

	// artifact
	var info *artifact.Info
	var err error
	if cfg.Library != "" {
		info, err = artifact.Describe(artifact.Source{FS: os.DirFS(filepath.Dir(cfg.Library)), Name: filepath.Base(cfg.Library)})
	} else {
		info, err = artifact.Describe(src)
	}
	artifactOK := add(DoctorCheck{Name: "artifact", Status: checkPass, Detail: describeInfo(info), err: err})

	// temp_dir
	tempOK := add(DoctorCheck{Name: "temp_dir", Status: checkPass, Detail: tempDirDetail(cfg.TempDir), err: checkTempDir(cfg.TempDir, cfg.ArtifactPrefix)})

	// materialize
	path := cfg.Library
	switch {
	case cfg.Library != "":
		add(DoctorCheck{Name: "materialize", Status: checkSkip, Detail: "using --library"})
	case !artifactOK || !tempOK:
		skip("materialize")
		path = ""
	default:
		m, err := artifact.Materialize(src, artifact.Options{Dir: cfg.TempDir, Prefix: cfg.ArtifactPrefix, Logger: logger})
		if err == nil {
			defer func() { _ = m.Remove() }()
			err = artifact.Verify(m.Path, info.SHA256)
			path = m.Path
		}
		if !add(DoctorCheck{Name: "materialize", Status: checkPass, Detail: "digest verified", err: err}) {
			path = ""
		}
	}

	// load, symbol
	if path == "" || !platformOK || !artifactOK {
		skip("load", "symbol")
	} else {
		lib, err := native.OpenWith(loader, path, native.WithLogger(logger))
		switch {
		case err == nil:
			_ = lib.Close()
			add(DoctorCheck{Name: "load", Status: checkPass})
			add(DoctorCheck{Name: "symbol", Status: checkPass, Detail: native.CompileSymbol})
		case errors.Is(err, native.ErrSymbolResolution):
			add(DoctorCheck{Name: "load", Status: checkPass})
			add(DoctorCheck{Name: "symbol", err: err})
		default:
			add(DoctorCheck{Name: "load", err: err})
			skip("symbol")
		}
	}

	// history
	if cfg.History {
		add(checkHistory(cfg.StatePath))
	} else {
		add(DoctorCheck{Name: "history", Status: checkSkip, Detail: "disabled"})
	}

	for _, c := range out.Checks {
		switch c.Status {
		case checkPass:
			out.Passed++
		case checkFail:
			out.Failed++
		default:
			out.Skipped++
		}
	}
	return out
}

func describeInfo(info *artifact.Info) string {
	if info == nil {
		return ""
	}
	sum := info.SHA256
	if len(sum) > 12 {
		sum = sum[:12]
	}
	return fmt.Sprintf("%s, %s, sha256 %s", info.Name, humanize.IBytes(uint64(info.Size)), sum) //nolint:gosec // size is non-negative
}

func tempDirDetail(dir string) string {
	if dir == "" {
		return os.TempDir()
	}
	return dir
}

func checkTempDir(dir, prefix string) error {
	f, err := os.CreateTemp(dir, prefix+"doctor-*")
	if err != nil {
		return fmt.Errorf("%w: %w", artifact.ErrIO, err)
	}
	name := f.Name()
	_, werr := f.Write([]byte("ok"))
	cerr := f.Close()
	rerr := os.Remove(name)
	if err := errors.Join(werr, cerr, rerr); err != nil {
		return fmt.Errorf("%w: %w", artifact.ErrIO, err)
	}
	return nil
}

func checkHistory(path string) DoctorCheck {
	store, err := state.OpenStore(path)
	if err != nil {
		return DoctorCheck{Name: "history", err: err}
	}
	defer func() { _ = store.Close() }()

	version, err := store.GetMigrationVersion()
	if err != nil {
		return DoctorCheck{Name: "history", err: err}
	}
	return DoctorCheck{Name: "history", Status: checkPass, Detail: fmt.Sprintf("%s (schema v%d)", path, version)}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	styles := r.Styles()

	r.Println(styles.Header1.Render("lusque doctor"))
	r.Println(styles.Muted.Render(fmt.Sprintf("%s, %s", out.Platform, out.Library)))
	r.Println("")

	for _, c := range out.Checks {
		icon := styles.StatusSuccess.String()
		switch c.Status {
		case checkFail:
			icon = styles.StatusFailed.String()
		case checkSkip:
			icon = styles.StatusSkipped.String()
		}
		line := fmt.Sprintf("  %s %-12s", icon, c.Name)
		if c.Detail != "" {
			detail := c.Detail
			if c.Status == checkFail {
				detail = styles.Error.Render(detail)
			} else {
				detail = styles.Muted.Render(detail)
			}
			line += " " + detail
		}
		r.Println(strings.TrimRight(line, " "))
	}

	r.Println("")
	summary := fmt.Sprintf("%d passed, %d failed, %d skipped", out.Passed, out.Failed, out.Skipped)
	if out.Failed > 0 {
		r.Println(styles.Error.Render(summary))
	} else {
		r.Println(styles.Success.Render(summary))
	}
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) {
	titleCaser := cases.Title(language.English)

	r.Println("# lusque doctor")
	r.Println("")
	r.Printf("Platform: `%s`, library: `%s`\n", out.Platform, out.Library)
	r.Println("")

	rows := make([][]string, 0, len(out.Checks))
	for _, c := range out.Checks {
		rows = append(rows, []string{c.Name, titleCaser.String(c.Status), c.Detail})
	}
	r.Table([]string{"Check", "Status", "Detail"}, rows)
	r.Println("")
	r.Printf("**%d passed, %d failed, %d skipped**\n", out.Passed, out.Failed, out.Skipped)
}
