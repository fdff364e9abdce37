/*
Package runner drives a conversation from a terminal or a pipe.

The Runner starts (or resumes) a stored session through a session.Manager,
prints every turn through an IOHandler and feeds the lines it reads back as
replies until the session ends. Input is sanitized before it reaches the engine.

# Usage

	r := runner.NewRunner(
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
		runner.WithLogger(logger),
	)
	if err := r.Run(ctx, manager, "user-1"); err != nil {
		log.Fatal(err)
	}
*/
package runner
