package cmd

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/api/schemas"
	"github.com/xkilldash9x/uiprobe/internal/browser/drivers"
	"github.com/xkilldash9x/uiprobe/internal/config"
	"github.com/xkilldash9x/uiprobe/internal/observability"
	"github.com/xkilldash9x/uiprobe/internal/scenario"
	"github.com/xkilldash9x/uiprobe/internal/scenario/catalog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// errScenariosFailed signals a non-zero exit after every result was reported.
var errScenariosFailed = errors.New("one or more scenarios did not pass")

const (
	formatText = "text"
	formatJSON = "json"
)

// newRunCmd creates the `run` command. Its flags are bound to v so they
// override the config file and environment.
func newRunCmd(v *viper.Viper) *cobra.Command {
	var (
		all     bool
		headful bool
		format  string
	)

	runCmd := &cobra.Command{
		Use:   "run [scenarios...]",
		Short: "Run scenarios, each in a fresh browser session",
		Long: `Run executes the named scenarios (or every scenario with --all) one after
another. Each scenario reports exactly one of PASS, FAIL with the business
reason of the first unmet expectation, or ERROR when the browser could not be
driven. The exit status is non-zero unless every scenario passed.`,
		Args: func(cmd *cobra.Command, args []string) error {
			switch {
			case all && len(args) > 0:
				return errors.New("--all cannot be combined with scenario names")
			case !all && len(args) == 0:
				return errors.New("requires at least one scenario name, or --all")
			}
			return nil
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if format != formatText && format != formatJSON {
				return fmt.Errorf("unsupported format %q: use %s or %s", format, formatText, formatJSON)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}
			if headful {
				cfg.Browser.Headless = false
			}

			available, err := loadScenarios(cfg)
			if err != nil {
				return err
			}
			selected := available
			if !all {
				if selected, err = scenario.Find(available, args...); err != nil {
					return err
				}
			}

			driver, err := drivers.New(cfg.Browser, logger)
			if err != nil {
				return err
			}
			logger.Info("Running scenarios.",
				zap.Int("count", len(selected)),
				zap.String("driver", driver.Name()),
				zap.String("base_url", cfg.Target.BaseURL),
			)

			runner := scenario.NewRunner(driver, drivers.SessionOptions(cfg), cfg, logger)
			results := runner.RunAll(ctx, selected)

			if err := writeResults(cmd.OutOrStdout(), format, results); err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			return summarize(results)
		},
	}

	flags := runCmd.Flags()
	flags.BoolVar(&all, "all", false, "run every available scenario")
	flags.BoolVar(&headful, "headful", false, "show the browser window")
	flags.StringVarP(&format, "format", "f", formatText, "output format (text, json)")
	flags.String("base-url", "", "origin of the application under test")
	flags.String("driver", "", "automation driver (playwright, cdp)")
	flags.String("scenario-dir", "", "directory of additional scenario files")

	// Bound at construction: the root command loads configuration before
	// this command's own hooks run.
	_ = v.BindPFlag("target.base_url", flags.Lookup("base-url"))
	_ = v.BindPFlag("browser.driver", flags.Lookup("driver"))
	_ = v.BindPFlag("scenarios.dir", flags.Lookup("scenario-dir"))

	return runCmd
}

// loadScenarios returns the built-in scenarios, replaced or extended by
// those in the configured scenario directory.
func loadScenarios(cfg *config.Config) ([]schemas.Scenario, error) {
	builtin, err := catalog.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load built-in scenarios: %w", err)
	}
	if cfg.Scenarios.Dir == "" {
		return builtin, nil
	}
	local, err := scenario.LoadDir(cfg.Scenarios.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenarios from %s: %w", cfg.Scenarios.Dir, err)
	}
	return scenario.Merge(builtin, local), nil
}

func writeResults(w io.Writer, format string, results []scenario.Result) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range results {
		detail := ""
		switch r.Status {
		case scenario.StatusFail:
			detail = fmt.Sprintf("[%s] %s", r.Outcome.AssertionID, r.Outcome.Reason)
		case scenario.StatusError:
			detail = r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", statusLabel(r.Status), r.Scenario, r.Duration.Round(10*time.Millisecond), detail)
		if r.Screenshot != "" {
			fmt.Fprintf(tw, "\t\t\tscreenshot: %s\n", r.Screenshot)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	passed, failed, errored := tally(results)
	_, err := fmt.Fprintf(w, "\n%d scenario(s): %d passed, %d failed, %d errored\n", len(results), passed, failed, errored)
	return err
}

func statusLabel(s scenario.Status) string {
	switch s {
	case scenario.StatusPass:
		return "PASS"
	case scenario.StatusFail:
		return "FAIL"
	default:
		return "ERROR"
	}
}

func tally(results []scenario.Result) (passed, failed, errored int) {
	for _, r := range results {
		switch r.Status {
		case scenario.StatusPass:
			passed++
		case scenario.StatusFail:
			failed++
		default:
			errored++
		}
	}
	return passed, failed, errored
}

// summarize returns errScenariosFailed unless every result passed.
func summarize(results []scenario.Result) error {
	passed, failed, errored := tally(results)
	if failed+errored == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d", errScenariosFailed, failed+errored, passed+failed+errored)
}
