package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/JzHartmut/jzcmd/internal/script/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate <script>",
	Short: "Check a script without running it",
	Long: `Loads the script and checks subroutine calls and statement placement.
The result is printed as JSON; the exit code is 1 when errors were found.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	res, err := validate.ValidateFile(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !res.Valid {
		return &exitError{code: 1}
	}
	return nil
}
