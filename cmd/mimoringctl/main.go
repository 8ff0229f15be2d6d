// Command mimoringctl creates, drives, and inspects mimoring buffers from
// the command line.
package main

import "github.com/mimoring/mimoring/cmd/mimoringctl/cmd"

func main() {
	cmd.Execute()
}
