package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/liamcoop/actionx/action"
	"github.com/liamcoop/actionx/internal/logger"
	"github.com/liamcoop/actionx/schedule"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	if err := newApp(os.Stdout).Run(context.Background(), args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "actionctl",
		Usage:     "Check and replay ACTIONX blocks offline",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "WARN", Sources: cli.EnvVars("LOG_LEVEL")},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger.Setup(ctx, logger.Options{Level: c.String("log-level")})
			return ctx, nil
		},
		Commands: []*cli.Command{
			checkCommand(out),
			keywordCommand(out),
			renderCommand(out),
			replayCommand(out),
		},
	}
}

func checkCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Parse a condition and print its normalised form",
		ArgsUsage: "<token>...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Value: "CHECK", Usage: "action name used in diagnostics"},
			&cli.StringFlag{Name: "file", Usage: "source file used in diagnostics"},
			&cli.IntFlag{Name: "line", Value: 1, Usage: "source line used in diagnostics"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			tokens := c.Args().Slice()
			if len(tokens) == 1 {
				tokens = strings.Fields(tokens[0])
			}
			loc := action.Location{File: c.String("file"), Line: int(c.Int("line"))}
			expr, err := action.BuildExpression(c.String("name"), []action.Condition{action.NewCondition(tokens, loc)})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, expr.String())
			return nil
		},
	}
}

func keywordCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "keyword",
		Usage:     "Report whether directives may be queued inside an action",
		ArgsUsage: "<name>...",
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() == 0 {
				return errors.New("at least one keyword name is required")
			}
			var rejected []string
			for _, name := range c.Args().Slice() {
				if action.ValidKeyword(name) {
					fmt.Fprintf(out, "%-8s allowed\n", name)
					continue
				}
				fmt.Fprintf(out, "%-8s rejected\n", name)
				rejected = append(rejected, name)
			}
			if len(rejected) > 0 {
				return fmt.Errorf("not allowed inside an action: %s", strings.Join(rejected, ", "))
			}
			return nil
		},
	}
}

func renderCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Print the deck lines a JSON keyword batch replays as",
		ArgsUsage: "<keywords.json>",
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return errors.New("exactly one keyword file is required")
			}
			keywords, err := loadKeywords(c.Args().First())
			if err != nil {
				return err
			}
			for _, kw := range keywords {
				if err := action.CheckKeyword("", kw); err != nil {
					return err
				}
			}
			for _, line := range action.KeywordLines(keywords) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func replayCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Run a JSON fixture of actions and report steps",
		ArgsUsage: "<fixture.json>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return errors.New("exactly one fixture path is required")
			}
			fx, err := loadFixture(c.Args().First())
			if err != nil {
				return err
			}
			fires, replayErr := replay(ctx, fx)
			if c.Bool("json") {
				if err := printJSON(out, fires); err != nil {
					return err
				}
			} else {
				printFires(out, fires)
			}
			return replayErr
		},
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printFires(out io.Writer, fires []*schedule.FireRecord) {
	if len(fires) == 0 {
		fmt.Fprintln(out, "no actions fired")
		return
	}
	for _, f := range fires {
		fmt.Fprintf(out, "%s %s run %d", f.SimTime.Format(time.DateOnly), f.Action, f.RunCount)
		if len(f.Entities) > 0 {
			fmt.Fprintf(out, " [%s]", strings.Join(f.Entities, " "))
		}
		fmt.Fprintln(out)
		for _, line := range f.Lines {
			fmt.Fprintf(out, "    %s\n", line)
		}
	}
}
