/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/notargets/gopencils/InputParameters"
	"github.com/notargets/gopencils/transpose"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat/combin"
)

// SweepCmd represents the sweep command
var SweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Check every memory order of the second pencil with both methods",
	Long: `
Runs the first transpose of the chain once for every permutation of the array
axes in the second pencil, with both communication methods, verifying the
round trip and that both methods deliver the same array.

gopencils sweep --size 16,21,41 --procs 2,2`,
	Run: func(cmd *cobra.Command, args []string) {
		ch, np, err := chainFromFlags(cmd)
		if err == nil {
			err = Sweep(ch.Params, np)
		}
		if err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(SweepCmd)
	addChainFlags(SweepCmd)
}

// Sweep runs the first two pencils of ip for every permutation of the second.
func Sweep(ip *InputParameters.InputParameters, np int) (err error) {
	if len(ip.Pencils) < 2 {
		return fmt.Errorf("sweep needs two pencils, have %d", len(ip.Pencils))
	}
	N := len(ip.GlobalSize)
	fmt.Printf("Sweeping %d permutations of %d axes on grid %v\n",
		combin.NumPermutations(N, N), N, ip.ProcessGrid)
	fmt.Printf("%12s %12s %10s %10s %16s\n", "permutation", "method", "messages", "elements", "checksum")
	for _, perm := range combin.Permutations(N, N) {
		var (
			run     = *ip
			reports = make(map[transpose.Method]ChainReport)
		)
		run.Iterations = 1
		run.Pencils = []InputParameters.PencilParameters{
			ip.Pencils[0],
			{Decomposition: ip.Pencils[1].Decomposition, Permutation: perm},
		}
		for _, method := range []transpose.Method{transpose.Pairwise, transpose.Collective} {
			ch := &Chain{Params: &run, Method: method, Verify: true}
			var rpt ChainReport
			if rpt, err = ch.Run(np); err != nil {
				return errors.Wrapf(err, "permutation %v, %s", perm, method)
			}
			reports[method] = rpt
			fmt.Printf("%12v %12s %10d %10d %16.10g\n", perm, method,
				rpt.Stats.Messages, rpt.Stats.Elements, rpt.Checksum)
		}
		if !reports[transpose.Pairwise].Last.Equal(reports[transpose.Collective].Last) {
			return fmt.Errorf("permutation %v: pairwise and collective results differ", perm)
		}
	}
	fmt.Printf("All permutations verified\n")
	return
}
