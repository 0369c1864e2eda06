// Command hfsm validates, draws and drives hierarchical state machines
// described in YAML.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/amp-labs/amp-hfsm/cli"
	"github.com/amp-labs/amp-hfsm/shutdown"
)

// errInvalid is returned when at least one definition fails validation. The
// report has already been printed, so main only sets the exit code.
var errInvalid = errors.New("invalid state machine definition")

func main() {
	ctx, stop := shutdown.SetupHandler(context.Background())
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, cli.NewPrompter())

	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, prompter cli.Prompter) int {
	app := &app{stdout: stdout, stderr: stderr, prompter: prompter}
	defer app.close()

	root := newRootCmd(app)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errInvalid) {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		}

		return 1
	}

	return 0
}
