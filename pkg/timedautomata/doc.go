/*
Package timedautomata classifies a live stream of timestamped events with a
set of candidate automata.

# Overview

Events are pushed one at a time into a Discriminator. Each event is stored
with the gap since the previous push. A processing goroutine offers the
buffered window to every registered automaton in turn. Each automaton reads
as far as it needs and either accepts, by emitting a value to the output
queue, or rejects. The first automaton to accept absorbs the span it read.
When every automaton rejects, the span is forwarded unchanged, and a replay
goroutine delivers it to the notify func with the original inter-arrival
timing.

# Basic Usage

	type press struct {
	    key string
	}

	d, err := timedautomata.New[press](timedautomata.WithLogger(logger))
	if err != nil {
	    log.Fatal(err)
	}
	if err := d.AddInitialState(chordStart, timedautomata.WithName("chord")); err != nil {
	    log.Fatal(err)
	}
	d.SetNotifyFunc(func(p press) {
	    fmt.Println(p.key)
	})
	if err := d.Start(ctx); err != nil {
	    log.Fatal(err)
	}
	defer d.Stop()

	d.Push(press{key: "a"})

# Writing States

A State reads from its Scope and returns the next state:

	type waitA struct{ next timedautomata.State[press] }

	func (s *waitA) HandleInput(sc *timedautomata.Scope[press]) timedautomata.State[press] {
	    rec, err := sc.Next(0)
	    if err != nil || rec.Value.key != "a" {
	        return nil // reject
	    }
	    return s.next
	}

Returning the receiver stays in the state, returning another state is a
transition, and returning nil ends the attempt. An attempt accepts when it
called Scope.Emit. Bounded reads return ErrReadTimeout; every read returns
ErrQueueClosed once the engine is stopping, and states must then return nil.

Intermediate states created during an attempt are released (see Releaser)
when the chain leaves them. Registered initial states live until Stop.

# Buffering

Queue never removes a record on read. Rewind lets the next automaton read
the same window from the start, and the high-water mark records how far the
furthest attempt read. After each cycle exactly that prefix is either
absorbed or forwarded, then erased.

# Ownership

The engine owns pushed values until it either hands them to the notify func
(forwarded spans) or drops them (absorbed spans, values buffered at Stop).
Dropped values go to the hook set with WithReleaseFunc.

# Observability

Logging uses log/slog. Metrics and spans use the global OpenTelemetry
providers and are enabled with WithMetrics and WithTracing. WithJournal
records one verdict per cycle.
*/
package timedautomata
