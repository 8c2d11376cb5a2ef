// Package engine resolves calls against stored configuration and runs them
// on the right session.
//
// # Request resolution
//
// Every call merges the engine's Config with a per-call Override, field by
// field: a present override wins, an absent one keeps the configured value.
// Merge, Decide and Resolve are pure and separately testable:
//
//	ov := engine.NewOverride(engine.WithTemperature(0.2))
//	eff := engine.Merge(cfg, ov)       // temperature overridden, rest configured
//	engine.Decide(ov)                  // ReuseSession
//
//	ov = engine.NewOverride(engine.WithTools(lookup))
//	engine.Decide(ov)                  // NewSession: tools are bound at session creation
//
// An override that supplies a model or a tool set runs on an ephemeral
// session built from the effective model and tools and the configured
// instructions. Ephemeral sessions are discarded after the call and never
// touch the persistent transcript.
//
// # Streaming
//
// Transform turns a feed of "full text so far" snapshots into a lazy
// iter.Seq2. Each snapshot is post-processed; Snapshots mode yields it as
// is, Deltas mode yields the new suffix, or the whole snapshot when
// post-processing changed text that was already yielded. Breaking out of
// the loop cancels the generation and is not an error:
//
//	for chunk, err := range e.Stream(ctx, engine.Text("Summarize the game"), engine.Deltas) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(chunk)
//	}
//
// # Concurrency
//
// Calls on the persistent session are serialized by a call lock; a stream
// holds it while it is being iterated, so calling the same Engine from
// inside a loop over one of its persistent-session streams deadlocks.
// Ephemeral calls run in parallel. Availability checks for the same model
// are collapsed with singleflight.
//
// # Errors
//
// Every failure leaving the engine is classified with core.Classify. A
// model that reports itself unavailable fails with
// *core.ModelUnavailableError before any work starts.
package engine
