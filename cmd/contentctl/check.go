package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/keithlinneman/linnemanlabs-content/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-content/internal/content"
	"github.com/keithlinneman/linnemanlabs-content/internal/log"
	"github.com/keithlinneman/linnemanlabs-content/internal/sitecontent"
	"github.com/keithlinneman/linnemanlabs-content/internal/xerrors"
)

// errCheckFailed is returned after the per-file report has been printed.
var errCheckFailed = xerrors.New("content check failed")

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Load and validate every collection once",
		Long: "Load every collection from the configured content source and validate\n" +
			"its frontmatter. Every offending file and field is reported; the exit\n" +
			"status is non-zero if any entry is invalid.",
		Args: cobra.NoArgs,
	}
	fs, conf := bindConfig(cmd)

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if err := resolveConfig(cmd, fs); err != nil {
			return err
		}
		if err := cfg.ValidateContent(*conf); err != nil {
			return xerrors.Wrap(err, "config error")
		}
		L, err := newLogger(conf, "check", cmd.ErrOrStderr())
		if err != nil {
			return xerrors.Wrap(err, "logger init")
		}
		ctx := log.WithContext(cmd.Context(), L)

		src, err := newSource(ctx, conf, L)
		if err != nil {
			return xerrors.Wrap(err, "content source")
		}
		b := content.NewBuilder(sitecontent.Registry(), nil)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "checking %s\n", describeSource(src))
		snap, err := content.Load(ctx, src, b)
		if err == nil {
			err = content.ValidateSnapshot(snap, content.ValidationOptions{MinEntries: conf.MinEntries})
		}
		if err != nil {
			writeReport(out, err)
			return errCheckFailed
		}

		counts := snap.Counts()
		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "%-10s %d entries\n", name, counts[name])
		}
		fmt.Fprintf(out, "ok: %d entries, content hash %s\n", snap.Total(), snap.Meta.Hash)
		return nil
	}
	return cmd
}

// writeReport prints one line per invalid file, or the bare error when the
// failure is not tied to a file.
func writeReport(w io.Writer, err error) {
	entryErrs := content.EntryErrors(err)
	if len(entryErrs) == 0 {
		fmt.Fprintf(w, "FAIL %v\n", err)
		return
	}
	for _, ee := range entryErrs {
		fmt.Fprintf(w, "FAIL %s [%s]: %v\n", ee.File, ee.Collection, ee.Err)
	}
	fmt.Fprintf(w, "%d invalid entries\n", len(entryErrs))
}
