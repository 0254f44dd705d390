package cmd

import (
	"github.com/arcmem/arcmem/std/utils"
	"github.com/arcmem/arcmem/tools"
	"github.com/spf13/cobra"
)

const banner = `
   __ _ _ __ ___ _ __ ___   ___ _ __ ___
  / _' | '__/ __| '_ ' _ \ / _ \ '_ ' _ \
 | (_| | | | (__| | | | | |  __/ | | | | |
  \__,_|_|  \___|_| |_| |_|\___|_| |_| |_|

Automatic Reference Counting Playground
`

var configFile string

var CmdArcmem = &cobra.Command{
	Use:     "arcmem",
	Short:   "Automatic Reference Counting Playground",
	Long:    banner[1:],
	Version: utils.Version,
}

func init() {
	cobra.EnableCommandSorting = false
	CmdArcmem.Root().CompletionOptions.HiddenDefaultCmd = true
	CmdArcmem.PersistentFlags().BoolP("help", "h", false, "Print usage")
	CmdArcmem.PersistentFlags().Lookup("help").Hidden = true
	CmdArcmem.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML configuration file")

	CmdArcmem.AddGroup(&cobra.Group{ID: "scenario", Title: "Scenarios"})
	CmdArcmem.AddGroup(&cobra.Group{ID: "trace", Title: "Diagnostics"})
	for _, sub := range tools.Cmds(&configFile) {
		CmdArcmem.AddCommand(sub)
	}
}
