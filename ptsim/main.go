// Command ptsim runs paged virtual memory scripts from the command line.
package main

import "github.com/sarchlab/ptsim/ptsim/cmd"

func main() {
	cmd.Execute()
}
