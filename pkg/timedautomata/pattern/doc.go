/*
Package pattern builds timedautomata states from declarative sequence specs.

A Spec lists steps. Each step has a condition over the event's fields and
an optional maximum gap from the previous step:

	automata:
	  - name: double-tap
	    emit: double
	    steps:
	      - match: key == 'a'
	        capture: first
	      - match: key == 'a'
	        within: 200ms

Build turns a Spec into an initial state. The first step waits for input
indefinitely. Every later step waits at most Within, and also rejects an
event whose recorded gap exceeds Within. A complete match appends the emit
func's result to the output queue, which is how the discriminator learns
the automaton accepted.

# Conditions

	<expr> := <expr> 'or' <expr>
	        | <expr> 'and' <expr>
	        | 'not' <expr> | '!' <expr>
	        | <value> <op> <value>
	        | <value>

	<op> := '==' | '!=' | '<' | '>' | '<=' | '>=' | 'contains' | 'matches'

'or' binds loosest, then 'and', then 'not'. Equality compares the values'
string forms, ordering compares them as numbers, and 'matches' takes a
regular expression. Values are quoted strings, numbers, true, false, null
or field names. The variable gap_ms holds the event's recorded gap in
milliseconds. An empty condition matches every event.
*/
package pattern
