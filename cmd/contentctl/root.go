package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/keithlinneman/linnemanlabs-content/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-content/internal/content"
	"github.com/keithlinneman/linnemanlabs-content/internal/log"
	"github.com/keithlinneman/linnemanlabs-content/internal/source"
	v "github.com/keithlinneman/linnemanlabs-content/internal/version"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Validate and serve the site's content collections",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCheckCmd(), newServeCmd(), newVersionCmd())
	return root
}

// bindConfig registers the shared config flags on cmd. cobra parses them
// through pflag, so resolveConfig has to replay explicit values into the
// go FlagSet before env vars are applied.
func bindConfig(cmd *cobra.Command) (*flag.FlagSet, *cfg.App) {
	var conf cfg.App
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cfg.Register(fs, &conf)
	cmd.Flags().AddGoFlagSet(fs)
	return fs, &conf
}

// resolveConfig applies env vars to every flag not set on the command line.
func resolveConfig(cmd *cobra.Command, fs *flag.FlagSet) error {
	var err error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if fs.Lookup(f.Name) == nil || err != nil {
			return
		}
		err = fs.Set(f.Name, f.Value.String())
	})
	if err != nil {
		return err
	}
	stderr := cmd.ErrOrStderr()
	cfg.FillFromEnv(fs, cfg.EnvPrefix, func(format string, args ...any) {
		fmt.Fprintf(stderr, format+"\n", args...)
	})
	return nil
}

func newLogger(conf *cfg.App, component string, w io.Writer) (log.Logger, error) {
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		return nil, err
	}
	stackLvl := lvl
	if conf.StacktraceLevel != "" {
		if stackLvl, err = log.ParseLevel(conf.StacktraceLevel); err != nil {
			return nil, err
		}
	}
	lg, err := log.New(log.Options{
		App:               appName,
		Version:           v.Version,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JsonFormat:        conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
		Writer:            w,
	})
	if err != nil {
		return nil, err
	}
	return lg.With("component", component), nil
}

// newSource builds the configured content source. The AWS config is only
// loaded for bundle sources.
func newSource(ctx context.Context, conf *cfg.App, L log.Logger) (content.Source, error) {
	switch conf.ContentSource {
	case cfg.SourceBundle:
		return source.NewBundle(ctx, source.BundleOptions{
			Logger:   L,
			SSMParam: conf.ContentSSMParam,
			S3Bucket: conf.ContentS3Bucket,
			S3Prefix: conf.ContentS3Prefix,
		})
	default:
		return source.NewDir(conf.ContentDir)
	}
}

// describeSource names where content is read from for logs and reports.
func describeSource(src content.Source) string {
	if d, ok := src.(*source.Dir); ok {
		return d.Root()
	}
	return string(src.Kind())
}
