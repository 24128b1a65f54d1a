// Package pipeline implements the Loom orchestration engine: a declarative
// step/parallel-group execution model for multi-stage AI generation.
//
// A pipeline Definition is an ordered list of stages. Sequential steps run
// through the StepExecutor, which wraps each generation in a bounded
// self-correction loop that feeds validator issues back into regeneration.
// Parallel groups fan out over forked copies of the shared Context and merge
// deterministically in declaration order. Refinable artifacts then pass
// through the RefinerLoop, an iterative producer/critic quality loop with
// adaptive per-kind thresholds and convergence detection, before a final
// cross-layer consistency pass over all completed artifacts.
//
// Ownership discipline: exactly one goroutine owns the Context (or a forked
// sub-context) at any time, and merges happen back on the orchestrating
// goroutine, so the Context itself carries no locks.
package pipeline
