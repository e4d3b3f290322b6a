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
	"github.com/notargets/gopencils/pencilarray"
	"github.com/notargets/gopencils/transpose"
	"github.com/notargets/gopencils/types"
	"github.com/notargets/gopencils/utils"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// TransposeCmd represents the transpose command
var TransposeCmd = &cobra.Command{
	Use:   "transpose",
	Short: "Transpose an array along a chain of pencils and back",
	Long: `
Builds a process grid, a chain of pencils and one array per pencil, then
transposes forward along the chain and back. With --verify every stage is
gathered on rank 0 and compared with the initial array.

gopencils transpose --size 16,21,41 --procs 3,2 --method collective --verify`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
			ch  *Chain
			np  int
		)
		if ch, np, err = chainFromFlags(cmd); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		show, _ := cmd.Flags().GetString("show")
		defer startProfile(viper.GetString("profile")).Stop()
		RunTranspose(ch, np, show)
	},
}

func init() {
	rootCmd.AddCommand(TransposeCmd)
	addChainFlags(TransposeCmd)
	TransposeCmd.Flags().IntP("iterations", "n", 1, "number of forward and back passes along the chain")
	TransposeCmd.Flags().BoolP("verify", "v", false, "gather every stage on rank 0 and check it")
	TransposeCmd.Flags().StringP("profile", "p", "", "profile the run: cpu or mem")
	TransposeCmd.Flags().String("show", "", "print a block of the last stage, e.g. \"0:2,end,:\"")
	for _, name := range []string{"iterations", "verify", "profile"} {
		_ = viper.BindPFlag(name, TransposeCmd.Flags().Lookup(name))
	}
}

// addChainFlags declares the flags shared by the commands that build a chain.
func addChainFlags(cmd *cobra.Command) {
	cmd.Flags().IntSliceP("size", "s", nil, "global array size, e.g. 16,21,41")
	cmd.Flags().IntSliceP("procs", "g", nil, "process grid, e.g. 2,2")
	cmd.Flags().Int("np", 0, "number of processes, defaults to the product of the process grid")
	cmd.Flags().IntSliceP("extra", "e", nil, "extra (never decomposed) trailing dimensions")
	cmd.Flags().StringP("method", "m", "pairwise", "communication method: pairwise or collective")
	cmd.Flags().StringP("input", "I", "", "YAML run file, see InputParameters")
}

// setting prefers an explicit flag, then the config file or environment, then the flag default.
func setting(cmd *cobra.Command, name string) string {
	if !cmd.Flags().Changed(name) && viper.IsSet(name) {
		return viper.GetString(name)
	}
	v, _ := cmd.Flags().GetString(name)
	return v
}

// chainFromFlags starts from the default run, applies the run file, then the flags.
func chainFromFlags(cmd *cobra.Command) (ch *Chain, np int, err error) {
	ip := InputParameters.NewDefault()
	if input := setting(cmd, "input"); input != "" {
		if err = ip.ReadFile(input); err != nil {
			return
		}
	}
	for name, dst := range map[string]*[]int{"size": &ip.GlobalSize, "procs": &ip.ProcessGrid,
		"extra": &ip.ExtraDims} {
		if cmd.Flags().Changed(name) {
			if *dst, err = cmd.Flags().GetIntSlice(name); err != nil {
				return
			}
		}
	}
	if cmd.Flags().Changed("method") || ip.Method == "" {
		ip.Method = setting(cmd, "method")
	}
	if f := cmd.Flags().Lookup("iterations"); f != nil && (f.Changed || ip.Iterations == 0) {
		ip.Iterations = viper.GetInt("iterations")
	}
	if (cmd.Flags().Changed("size") || cmd.Flags().Changed("procs")) && setting(cmd, "input") == "" {
		ip.Pencils = defaultPencils(len(ip.GlobalSize), len(ip.ProcessGrid))
	}
	ch = &Chain{Params: ip}
	if ch.Method, err = transpose.ParseMethod(ip.Method); err != nil {
		return
	}
	ch.Verify = viper.GetBool("verify")
	if np, err = cmd.Flags().GetInt("np"); err != nil {
		return
	}
	if np == 0 {
		np = utils.Index(ip.ProcessGrid).Prod()
	}
	return
}

/*
defaultPencils is the usual chain for an N dimensional array on a D
dimensional grid: the first pencil keeps axis 0 whole, and each following one
brings the next axis into memory, first in the permuted order.
*/
func defaultPencils(N, D int) (pp []InputParameters.PencilParameters) {
	if D >= N {
		return
	}
	for k := 0; k <= D; k++ {
		var (
			decomp = make([]int, 0, D)
			perm   = make([]int, 0, N)
		)
		for a := 0; a < N && len(decomp) < D; a++ {
			if a != k {
				decomp = append(decomp, a)
			}
		}
		perm = append(perm, k)
		for a := 0; a < N; a++ {
			if a != k {
				perm = append(perm, a)
			}
		}
		pp = append(pp, InputParameters.PencilParameters{Decomposition: decomp, Permutation: perm})
	}
	return
}

func startProfile(kind string) interface{ Stop() } {
	switch kind {
	case "cpu":
		return profile.Start(profile.CPUProfile, profile.ProfilePath("."))
	case "mem":
		return profile.Start(profile.MemProfile, profile.ProfilePath("."))
	}
	return noProfile{}
}

type noProfile struct{}

func (noProfile) Stop() {}

func RunTranspose(ch *Chain, np int, show string) {
	ip := ch.Params
	fmt.Printf("Pencil transposes in %d Dimensions\n", len(ip.GlobalSize))
	fmt.Printf("Using %d go routines as processes on grid %v\n", np, ip.ProcessGrid)
	ch.Log = true
	rpt, err := ch.Run(np)
	if err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
	if ch.Verify {
		fmt.Printf("Verified: every stage matches the initial array\n")
	}
	if show != "" {
		if err = printBlock(rpt.Last, show); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	}
	fmt.Println(utils.GetMemUsage())
}

// printBlock prints the selected block of g one innermost line at a time.
func printBlock(g *pencilarray.GlobalArray[float64], expr string) (err error) {
	var (
		r types.Ranges
		b *pencilarray.GlobalArray[float64]
	)
	if r, err = utils.ParseRanges(expr, g.Shape); err != nil {
		return
	}
	if b, err = g.Block(r); err != nil {
		return
	}
	n0 := b.Shape[0]
	idx := make([]int, len(b.Shape))
	for n := 0; n < len(b.Data); n += n0 {
		utils.LinearToCartesian(n, b.Shape, idx)
		for i := range idx {
			idx[i] += r[i].Lo
		}
		fmt.Printf("%v: %8.4f\n", idx[1:], b.Data[n:n+n0])
	}
	return
}
