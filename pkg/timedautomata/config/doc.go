/*
Package config loads timedautomata engine settings.

# Overview

Settings covers logging, observability, the verdict journal and replay
pacing. Values come from three layers, later layers winning:

 1. Default()
 2. A YAML or JSON file, either at the document root or under "engine"
 3. TIMEDAUTOMATA_* environment variables

# File Loading

	s, err := config.Load("engine.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	logger := s.NewLogger(os.Stderr)

A combined document may carry other sections next to "engine"; LoadFile
decodes any document into a caller-supplied struct:

	var doc struct {
	    Automata []pattern.Spec `yaml:"automata"`
	}
	err := config.LoadFile("engine.yaml", &doc)

Durations accept Go duration strings ("250ms", "1s") in both YAML and JSON.

# Environment

	TIMEDAUTOMATA_LOG_LEVEL         debug|info|warn|error
	TIMEDAUTOMATA_LOG_FORMAT        text|json
	TIMEDAUTOMATA_METRICS           bool
	TIMEDAUTOMATA_TRACING           bool
	TIMEDAUTOMATA_JOURNAL_PATH      path or :memory:
	TIMEDAUTOMATA_DELTA_RESOLUTION  duration
	TIMEDAUTOMATA_DELIVERY_RATE     events per second
	TIMEDAUTOMATA_DELIVERY_BURST    int
*/
package config
