package cmd

import (
	"regexp"

	"github.com/spf13/cobra"

	engerrors "github.com/memengine/memengine/internal/errors"
	"github.com/memengine/memengine/internal/logging"
	"github.com/memengine/memengine/internal/ui"
)

func newLogsCmd() *cobra.Command {
	var (
		file    string
		n       int
		level   string
		pattern string
		follow  bool
		noColor bool
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Tail or follow the engine's own log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(cmd, logsOptions{file: file, n: n, level: level, pattern: pattern, follow: follow, noColor: noColor})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "log file to read (default: .store/logs/engine.log under the project root)")
	cmd.Flags().IntVarP(&n, "lines", "n", 50, "number of lines to show")
	cmd.Flags().StringVar(&level, "level", "", "minimum level to show: debug, info, warn, error")
	cmd.Flags().StringVar(&pattern, "grep", "", "only show lines matching this regular expression")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep reading as new lines are appended")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable ANSI color in level labels")
	return cmd
}

type logsOptions struct {
	file, level, pattern string
	n                    int
	follow, noColor      bool
}

func runLogs(cmd *cobra.Command, opts logsOptions) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}

	path, err := logging.FindLogFile(root, opts.file)
	if err != nil {
		return engerrors.New(engerrors.ErrCodeNotFound, err.Error(), err)
	}

	var pat *regexp.Regexp
	if opts.pattern != "" {
		pat, err = regexp.Compile(opts.pattern)
		if err != nil {
			return engerrors.ValidationError("invalid --grep pattern", err)
		}
	}

	noColor := opts.noColor
	out := cmd.OutOrStdout()
	if !cmd.Flags().Changed("no-color") {
		noColor = ui.DetectNoColor() || ui.DetectCI() || !ui.IsTTY(out)
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pat,
		NoColor: noColor,
	}, out)

	n := opts.n
	if n <= 0 {
		n = 50
	}
	entries, err := viewer.Tail(path, n)
	if err != nil {
		return err
	}
	viewer.Print(entries)

	if !opts.follow {
		return nil
	}

	ch := make(chan logging.LogEntry, 16)
	ctx := cmd.Context()
	go func() {
		_ = viewer.Follow(ctx, path, ch)
		close(ch)
	}()
	for entry := range ch {
		viewer.Print([]logging.LogEntry{entry})
	}
	return nil
}
