package tools

import (
	"fmt"
	"io"
	"strings"

	"github.com/arcmem/arcmem/std/arc"
	"github.com/arcmem/arcmem/std/utils"
	"github.com/arcmem/arcmem/std/utils/toolutils"
	"github.com/arcmem/arcmem/tools/scenario"
	"github.com/spf13/cobra"
)

// Cmds returns the scenario and trace commands. configFile is read when
// a command starts.
func Cmds(configFile *string) []*cobra.Command {
	return []*cobra.Command{
		CmdRun(configFile),
		CmdDemo(configFile),
		CmdTrace(configFile),
	}
}

// Runner runs scenarios with the configured registry options.
type Runner struct {
	configFile *string
	stats      bool
	quiet      bool
}

func (r *Runner) String() string {
	return "runner"
}

// CmdRun runs scenario files.
func CmdRun(configFile *string) *cobra.Command {
	r := &Runner{configFile: configFile}
	cmd := &cobra.Command{
		GroupID: "scenario",
		Use:     "run FILE...",
		Short:   "Run scenario files",
		Long: `Run reference counting scenarios written in YAML.
Each scenario runs against its own registry. Objects still alive once every
variable is dropped are reported together with the cycles holding them.`,
		Args:    cobra.MinimumNArgs(1),
		Example: `  arcmem run room.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios := make([]*scenario.Scenario, 0, len(args))
			for _, file := range args {
				s, err := scenario.Load(file)
				if err != nil {
					return err
				}
				scenarios = append(scenarios, s)
			}
			return r.run(cmd, scenarios)
		},
	}
	r.flags(cmd)
	return cmd
}

// CmdDemo lists and runs the embedded demos.
func CmdDemo(configFile *string) *cobra.Command {
	r := &Runner{configFile: configFile}
	cmd := &cobra.Command{
		GroupID: "scenario",
		Use:     "demo",
		Short:   "Built-in reference counting demos",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the demos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			demos, err := scenario.Demos()
			if err != nil {
				return err
			}
			p := toolutils.StatusPrinter{Out: cmd.OutOrStdout(), Padding: 18}
			for _, s := range demos {
				p.Print(s.Name, s.Description)
			}
			return nil
		},
	})

	run := &cobra.Command{
		Use:     "run NAME...|all",
		Short:   "Run demos",
		Args:    cobra.MinimumNArgs(1),
		Example: "  arcmem demo run room-weak\n  arcmem demo run all --stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(args) == 1 && args[0] == "all" {
				names = scenario.DemoNames
			}
			scenarios := make([]*scenario.Scenario, 0, len(names))
			for _, name := range names {
				s, err := scenario.Demo(name)
				if err != nil {
					return err
				}
				scenarios = append(scenarios, s)
			}
			return r.run(cmd, scenarios)
		},
	}
	r.flags(run)
	cmd.AddCommand(run)

	return cmd
}

func (r *Runner) flags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&r.stats, "stats", false, "print registry counters after each scenario")
	cmd.Flags().BoolVarP(&r.quiet, "quiet", "q", false, "only report failures and leaks")
}

func (r *Runner) run(cmd *cobra.Command, scenarios []*scenario.Scenario) error {
	cmd.SilenceUsage = true
	config, err := LoadConfig(*r.configFile)
	if err != nil {
		return err
	}
	env, err := config.Open(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	out := cmd.OutOrStdout()
	failed := 0
	for i, s := range scenarios {
		if len(scenarios) > 1 && !r.quiet {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "== %s ==\n", s.Name)
		}

		res, err := scenario.Run(s, scenario.Options{
			Arc: env.ArcOptions(),
			Out: utils.If(r.quiet, io.Discard, out),
		})
		if res != nil {
			res.WriteLeaks(out)
			if r.stats {
				writeStats(out, res.Stats)
			}
		}
		if err != nil {
			failed++
			env.Log.Error(r, "Scenario failed", "name", s.Name, "err", err)
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", s.Name, err)
		}
	}
	env.WriteSummary(out)

	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(scenarios))
	}
	return nil
}

func writeStats(w io.Writer, st arc.Stats) {
	p := toolutils.StatusPrinter{Out: w, Padding: 10}
	p.Print("allocated", st.Allocated)
	p.Print("live", st.Live)
	p.Print("zombies", st.Zombies)
	p.Print("reclaimed", st.Reclaimed)
}

// CmdTrace reads back traces recorded by the badger backend.
func CmdTrace(configFile *string) *cobra.Command {
	var kinds []string
	var path string

	cmd := &cobra.Command{
		GroupID: "trace",
		Use:     "trace",
		Short:   "Inspect recorded lifecycle traces",
	}

	dump := &cobra.Command{
		Use:   "dump [DIR]",
		Short: "Print the events stored in a trace database",
		Long: `Print the events stored in a trace database, in sequence order.
DIR defaults to the trace path of the configuration file.`,
		Args:    cobra.MaximumNArgs(1),
		Example: `  arcmem trace dump ./trace --kind teardown --kind reclaim`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if len(args) == 1 {
				path = args[0]
			} else {
				config, err := LoadConfig(*configFile)
				if err != nil {
					return err
				}
				path = config.Trace.Path
			}
			if path == "" {
				return fmt.Errorf("%w: no trace directory given", ErrInvalidConfig)
			}
			return dumpTrace(cmd.OutOrStdout(), path, kinds)
		},
	}
	dump.Flags().StringSliceVar(&kinds, "kind", nil, "only print events of this kind ("+kindNames()+")")
	cmd.AddCommand(dump)

	return cmd
}

func kindNames() string {
	names := []string{}
	for k := arc.EventAlloc; k <= arc.EventFatal; k++ {
		names = append(names, k.String())
	}
	return strings.Join(names, ", ")
}
