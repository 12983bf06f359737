// Command ztsharvest is the entrypoint for the bibliographic metadata
// harvester. All flag parsing and run logic lives in internal/cli.
package main

import (
	cmd "github.com/ubtue/ztsharvest/internal/cli"
)

func main() {
	cmd.Execute()
}
