package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tuannm99/novagrid/gridstore"
	"github.com/tuannm99/novagrid/internal/config"
	"github.com/tuannm99/novagrid/internal/native/embedded"
)

// app is the state shared by every subcommand.
type app struct {
	cfgFile string
	seed    string

	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "gridsh",
		Short: "Shell for a novagrid store",
		Long: `gridsh connects to a novagrid store and runs TQL against its containers.

Without a subcommand it starts the interactive shell. Settings come from
--config, NOVAGRID_* environment variables and the flags below.`,
		Version:           gridstore.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runShell(cmd, nil)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (yaml)")
	pf.StringVar(&a.seed, "seed", "", "json file of containers and rows to load after connecting")
	pf.String("host", "", "store host or multicast notification address")
	pf.Int("port", 0, "store port")
	pf.String("cluster", "", "cluster name")
	pf.String("database", "", "database name")
	pf.String("user", "", "user name")
	pf.String("password", "", "password")
	pf.String("log-level", "", "log level (trace|debug|info|warn|error|disabled)")

	root.AddCommand(
		newShellCmd(a),
		newQueryCmd(a),
		newContainersCmd(a),
		newVersionCmd(),
	)
	return root
}

// load reads the config and lays explicit flags over it.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" || cmd.Name() == "help" {
		return nil
	}
	cfg, err := config.LoadConfig(a.cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	str("host", &cfg.Store.Host)
	str("cluster", &cfg.Store.ClusterName)
	str("database", &cfg.Store.Database)
	str("user", &cfg.Store.Username)
	str("password", &cfg.Store.Password)
	str("log-level", &cfg.Log.Level)
	if flags.Changed("port") {
		cfg.Store.Port, _ = flags.GetInt("port")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.log = cfg.Logger(cmd.ErrOrStderr())
	return nil
}

// withStore opens a store on an embedded driver, loads --seed and runs fn.
// Everything is closed when fn returns.
func (a *app) withStore(fn func(st *gridstore.Store) error) (err error) {
	driver := embedded.New(embedded.WithPartitionCount(a.cfg.Embedded.PartitionCount))
	f := gridstore.NewStoreFactory(driver, a.cfg.FactoryOptions(a.log)...)
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	st, err := f.GetStore(a.cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); err == nil {
			err = cerr
		}
	}()

	if a.seed != "" {
		if err := loadSeed(st, a.seed); err != nil {
			return err
		}
		a.log.Debug().Str("file", a.seed).Msg("seed loaded")
	}
	return fn(st)
}

func (a *app) runShell(cmd *cobra.Command, exec []string) error {
	return a.withStore(func(st *gridstore.Store) error {
		sh := newShell(st, cmd.OutOrStdout(), NewHistory(a.cfg.Shell.HistoryFile))
		defer sh.close()

		if len(exec) == 0 {
			return sh.run(a.cfg.Shell.Prompt, a.cfg.Shell.HistoryMax)
		}
		for _, line := range exec {
			if err := sh.exec(line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				return err
			}
		}
		return nil
	})
}

func newShellCmd(a *app) *cobra.Command {
	var exec []string
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runShell(cmd, exec)
		},
	}
	cmd.Flags().StringArrayVarP(&exec, "command", "c", nil, "run a shell line and exit (repeatable)")
	return cmd
}

func newQueryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "query CONTAINER STATEMENT...",
		Short: "Run one TQL statement and print the result",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stmt := strings.TrimSuffix(strings.TrimSpace(strings.Join(args[1:], " ")), ";")
			return a.withStore(func(st *gridstore.Store) error {
				c, err := st.GetContainer(args[0])
				if err != nil {
					return err
				}
				if c == nil {
					return fmt.Errorf("container %q does not exist", args[0])
				}
				defer func() { _ = c.Close() }()

				q, err := c.Query(stmt)
				if err != nil {
					return err
				}
				defer func() { _ = q.Close() }()
				if limit > 0 {
					if err := q.SetFetchOptions(gridstore.FetchOptions{Limit: &limit}); err != nil {
						return err
					}
				}
				rs, err := q.Fetch()
				if err != nil {
					return err
				}
				return renderRowSet(cmd.OutOrStdout(), rs, c.Info().Columns())
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "fetch at most this many rows")
	return cmd
}

type containerSummary struct {
	name      string
	typ       gridstore.ContainerType
	partition int
	rows      int64
}

func newContainersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "containers",
		Short: "List containers with their partition and row count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(func(st *gridstore.Store) error {
				summaries, err := summarize(cmd.Context(), st)
				if err != nil {
					return err
				}
				rows := make([]table.Row, len(summaries))
				for i, s := range summaries {
					rows[i] = table.Row{s.name, s.typ, s.partition, s.rows}
				}
				renderTable(cmd.OutOrStdout(), table.Row{"name", "type", "partition", "rows"}, rows)
				return nil
			})
		},
	}
}

// summarize counts the rows of every container concurrently on the
// session's executor.
func summarize(ctx context.Context, st *gridstore.Store) ([]containerSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	names, err := listContainers(st)
	if err != nil {
		return nil, err
	}
	pc, err := st.PartitionController()
	if err != nil {
		return nil, err
	}
	defer func() { _ = pc.Close() }()

	futures := make([]*gridstore.Future[containerSummary], len(names))
	for i, name := range names {
		p, err := pc.PartitionIndexOfContainer(name)
		if err != nil {
			return nil, err
		}
		futures[i] = gridstore.Go(st.Session(), func() (containerSummary, error) {
			return countRows(st, name, p)
		})
	}
	return gridstore.AwaitAll(ctx, futures...)
}

func countRows(st *gridstore.Store, name string, partition int) (containerSummary, error) {
	out := containerSummary{name: name, partition: partition}
	c, err := st.GetContainer(name)
	if err != nil || c == nil {
		return out, err
	}
	defer func() { _ = c.Close() }()
	out.typ = c.Type()

	q, err := c.Query("SELECT COUNT(*)")
	if err != nil {
		return out, err
	}
	defer func() { _ = q.Close() }()
	rs, err := q.Fetch()
	if err != nil {
		return out, err
	}
	defer func() { _ = rs.Close() }()

	v, err := gridstore.Next(rs)
	if err != nil {
		return out, err
	}
	if agg, ok := v.(*gridstore.AggregationResult); ok {
		n, err := agg.Get(gridstore.TypeLong)
		if err != nil {
			return out, err
		}
		out.rows = n.(int64)
	}
	return out, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "gridsh %s\n", gridstore.Version)
		},
	}
}
