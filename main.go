package main

import "github.com/notargets/gopencils/cmd"

func main() {
	cmd.Execute()
}
