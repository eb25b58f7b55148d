package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/entrhq/renewbot/pkg/plan"
	"github.com/spf13/cobra"
)

var carriersCmd = &cobra.Command{
	Use:   "carriers",
	Short: "List the supported carriers and the names the results filter shows",
	Run: func(cmd *cobra.Command, args []string) {
		printCarriers(os.Stdout)
	},
}

func printCarriers(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILTER NAMES")
	for _, c := range plan.AllCarriers {
		fmt.Fprintf(tw, "%s\t%s\n", c, strings.Join(plan.DisplayNames(c), ", "))
	}
	tw.Flush()
}
