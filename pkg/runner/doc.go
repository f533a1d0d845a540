/*
Package runner drives a mosaic engine from a stream of external events.

It is the bridge between the engine and a terminal or another process: events
are read through a pluggable IOHandler, filtered through interceptors, and
dispatched; every published snapshot is handed back to the handler.

# Key Components

  - Runner: the read-dispatch loop with signal handling.
  - IOHandler: decouples how events arrive and snapshots leave (text or JSON lines).
  - TextHandler: "cell = value" assignments for interactive use.
  - JSONHandler: one JSON event per line in, one JSON message per line out.

# Usage

	r := runner.NewRunner(
		runner.WithEngine(engine),
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)

	if err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}
*/
package runner
