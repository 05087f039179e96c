// Command jzcmd runs build and generation scripts.
//
// Usage:
//
//	jzcmd run      <script.jzy>           Execute a script
//	jzcmd validate <script.jzy>           Validate a script (JSON to stdout)
//	jzcmd watch    <script.jzy>           Re-run a script whenever it changes
//	jzcmd agent    --station <id>         Serve remote commands over Redis
//	jzcmd history                         List stored runs
//	jzcmd export   <run-id>               Export a stored run as CSV, JSON or PDF
package main

import (
	"os"

	"github.com/JzHartmut/jzcmd/cmd/jzcmd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
