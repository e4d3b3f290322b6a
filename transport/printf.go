package transport

import (
	"fmt"
	"log"
)

// PrintAllProcs causes Printf to print on all ranks -- otherwise just Root
var PrintAllProcs = false

// Printf logs only on the Root rank of c (see also AllPrintf to log on all)
func Printf(c Comm, fs string, pars ...any) {
	if !PrintAllProcs && c.Rank() != Root {
		return
	}
	if c.Rank() != Root {
		AllPrintf(c, fs, pars...)
	} else {
		log.Printf(fs, pars...)
	}
}

// AllPrintf logs on every rank, with the rank printed first.
// This is best for debugging the communication itself.
func AllPrintf(c Comm, fs string, pars ...any) {
	fs = fmt.Sprintf("P%d: ", c.Rank()) + fs
	log.Printf(fs, pars...)
}
