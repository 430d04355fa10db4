/*
Package env provides the per-automaton environment used by timedautomata states.

# Overview

Every automaton registered with a Discriminator owns one Env. All states in
that automaton's chain share it, which lets a state record partial match data
(captured events, counters, timestamps) that a later state reads back.

Env wraps a map[string]any and provides typed accessor methods that handle
missing keys and type mismatches by returning default values:

	e := env.New()
	e.Set("count", 3)
	e.Set("window", "250ms")

	count := e.Int("count", 0)                          // 3
	window := e.Duration("window", time.Second)         // 250ms
	missing := e.String("missing", "default")           // "default"

Generic helpers cover typed slices and values:

	env.Append(e, "seen", event)
	seen, ok := env.Lookup[[]Event](e, "seen")

# Scope

An Env is never process-global. It is created by the Discriminator when an
automaton is registered (or supplied by the caller with WithEnv) and cleared
when the Discriminator stops.

# Thread Safety

Env is not safe for concurrent use. Only the discriminator's processing
goroutine accesses automaton environments.
*/
package env
