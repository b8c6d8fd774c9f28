/*
Package query turns raw search input into canonical payloads and makes search
results deterministic.

A RawInput is what a caller types: free text for words, prefixes and postfixes
plus optional word-count bounds. Normalize maps it to a Payload, which is the
exact body sent to the search service:

	{"words":["foo","bar"],"prefixes":[],"postfixes":["hub"],"minWordCount":1,"maxWordCount":2}

Two inputs that normalize to the same Payload are the same query. Payload.Key
returns the canonical encoding so payloads can be compared or used as map keys.

Results coming back from the service are run through NormalizeResult, which
never returns nil lists and sorts both lists lexicographically so results can
be compared and diffed regardless of server ordering.
*/
package query
