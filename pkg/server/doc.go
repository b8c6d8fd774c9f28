/*
Package server implements the dotsearch search service over HTTP.

The service answers the queries a coordinator sends. Every endpoint accepts
JSON or msgpack, picked by the request Content-Type, and replies in the same
encoding.

# Search

	POST /api/search
	{"words":["cat","dog"],"prefixes":[],"postfixes":[],"minWordCount":1,"maxWordCount":2}

The payload is expanded into candidate names (see package search) and each
candidate is checked against the lookup backend:

	{"free":["cat","dog","dogcat"],"reserved":["catdog"]}

Both lists are sorted. Requests with negative bounds, maxWordCount below
minWordCount, tokens longer than a DNS label (63 bytes) or too many tokens are rejected:

	{"error":"maxWordCount must be >= minWordCount","status":400}

# Batch lookup

	POST /api/batch-lookup
	{"words":["catdog","dogcat"]}

	{"is_free":{"catdog":false,"dogcat":true}}

A server started without a local registry forwards batch lookups to another
instance, so a thin front server can sit in front of one holding the data.

# Prefix counts

	GET /api/count?prefix=cat

	{"prefix":"cat","registered":1234}

Only servers holding a local registry answer; a proxying server replies 501.

# Health

	GET /health

	{"status":"ok","stats":{"registeredNames":1234}}
*/
package server
