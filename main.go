// Command fac is a CLI mod manager for Factorio: it reconciles a
// declared set of mod requirements against a local install, fetching
// metadata from the Mod Portal and applying the resulting diff.
package main

import "factorio-mods-cli/cmd"

func main() {
	cmd.Execute()
}
