package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/cottand/ksym/cache"
	"github.com/cottand/ksym/definition"
	"github.com/cottand/ksym/index"
	"github.com/cottand/ksym/internal/log"
	"github.com/cottand/ksym/internal/metrics"
	"github.com/cottand/ksym/kerr"
	"github.com/cottand/ksym/term"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// common flags of every subcommand
type options struct {
	configuration *string
	logLevel      *int
	sections      *[]string
	cacheDir      *string
	audit         *string
}

func addOptions(c *cobra.Command) *options {
	o := &options{
		configuration: c.Flags().StringP("config", "c", "", "initial configuration, as KAST text"),
		logLevel:      c.Flags().IntP("log-level", "l", int(slog.LevelWarn), "log level"),
		sections:      c.Flags().StringSlice("log-section", nil, "additional log sections to emit below warn"),
		cacheDir:      c.Flags().String("cache-dir", "", "directory of the index cache, disabled when empty"),
		audit:         c.Flags().String("audit", "", "label of a rule every index query must select"),
	}
	_ = c.MarkFlagRequired("config")
	return o
}

// session is what a subcommand works on once its flags are read
type session struct {
	def           *definition.Definition
	configuration term.Term
	table         *index.Table
	metrics       *metrics.Metrics
	close         func() error
}

func (o *options) open(path string) (*session, error) {
	log.SetLevel(slog.Level(*o.logLevel))
	log.EnableSections(*o.sections...)

	def, err := definition.LoadFile(path)
	if err != nil {
		return nil, describe(err)
	}
	configuration, err := def.ParseTerm(*o.configuration)
	if err != nil {
		return nil, describe(errors.Wrap(err, "could not parse configuration"))
	}

	s := &session{
		def:           def,
		configuration: configuration,
		metrics:       metrics.Default(),
		close:         func() error { return nil },
	}
	tableOpts := []index.Option{index.WithMetrics(s.metrics)}
	if *o.audit != "" {
		tableOpts = append(tableOpts, index.WithAudit(*o.audit))
	}
	if *o.cacheDir == "" {
		s.table = index.NewTable(def, tableOpts...)
		return s, nil
	}

	store, err := cache.Open(cache.DefaultConfig(*o.cacheDir))
	if err != nil {
		return nil, err
	}
	s.close = store.Close
	if s.table, err = store.Table(def, tableOpts...); err != nil {
		_ = store.Close()
		return nil, err
	}
	return s, nil
}

// describe renders coded errors with their code
func describe(err error) error {
	var kErr kerr.KError
	if errors.As(err, &kErr) {
		return fmt.Errorf("%s", kerr.FormatWithCode(kErr))
	}
	return err
}

func printTerms(c *cobra.Command, terms []fmt.Stringer) {
	sb := &strings.Builder{}
	for _, t := range terms {
		sb.WriteString(t.String())
		sb.WriteString("\n")
	}
	_, _ = fmt.Fprint(c.OutOrStdout(), sb.String())
}
