package query

import "slices"

// Result holds the two token sets returned by a search.
// Both lists are sorted and never nil.
type Result struct {
	Free     []string `json:"free" msgpack:"free"`
	Reserved []string `json:"reserved" msgpack:"reserved"`
}

// EmptyResult is the value published before any search succeeds.
func EmptyResult() Result {
	return Result{Free: []string{}, Reserved: []string{}}
}

// NormalizeResult copies free and reserved, defaulting missing lists to empty
// and sorting both lexicographically. The inputs are not modified.
func NormalizeResult(free, reserved []string) Result {
	return Result{
		Free:     sortedCopy(free),
		Reserved: sortedCopy(reserved),
	}
}

// Normalized returns r with nil lists replaced and both lists sorted.
func (r Result) Normalized() Result {
	return NormalizeResult(r.Free, r.Reserved)
}

// Equal compares two results element by element.
func (r Result) Equal(o Result) bool {
	return slices.Equal(r.Free, o.Free) && slices.Equal(r.Reserved, o.Reserved)
}

// Clone returns a copy of r that shares no backing arrays with it.
func (r Result) Clone() Result {
	return Result{
		Free:     cloneList(r.Free),
		Reserved: cloneList(r.Reserved),
	}
}

// Len is the total number of names in r.
func (r Result) Len() int {
	return len(r.Free) + len(r.Reserved)
}

func sortedCopy(list []string) []string {
	if len(list) == 0 {
		return []string{}
	}
	out := slices.Clone(list)
	slices.Sort(out)
	return out
}

func cloneList(list []string) []string {
	if list == nil {
		return []string{}
	}
	return slices.Clone(list)
}
