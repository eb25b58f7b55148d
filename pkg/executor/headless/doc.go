// Package headless runs a renewal pass end to end without a terminal UI.
//
// The executor wires the engine together over an already attached browser
// session:
//
//	┌─────────────────────────────────────────────────────────┐
//	│                 Headless Executor                        │
//	│  - YAML run configuration                               │
//	│  - Operator command listener                            │
//	│  - Console logger and summary                           │
//	│  - Audit artifacts                                      │
//	└──────────────────┬──────────────────────────────────────┘
//	                   │
//	                   ▼
//	        ┌──────────────────────┐
//	        │  roster.Reconciler   │
//	        │  workflow.Sequencer  │
//	        └──────────────────────┘
//
// Example usage:
//
//	config, _ := headless.LoadConfig("renewbot.yaml")
//	approved, _ := plan.ParseApprovalSet([]string{"oscar", "aetna"})
//	executor, _ := headless.NewExecutor(session, config, approved,
//	    headless.WithCommands(os.Stdin, os.Stdout))
//
//	if err := executor.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Artifacts:
//
// The artifact writer generates run reports in artifact_dir on every exit
// path, including operator stops and lost browser sessions:
// - audit.json: one flat record per attempted client
// - audit.xlsx: the same records as a workbook
// - summary.md: human-readable markdown summary
// - metrics.json: outcome counts, success rate and average time per client
package headless
