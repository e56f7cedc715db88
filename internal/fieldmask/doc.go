// Package fieldmask implements the dot-separated path algebra shared by the
// State Manager, the Access Control Filter, and CompleteState responses.
//
// A field mask is a dot-separated path where map keys and object field
// names are syntactically indistinguishable; resolution traverses the
// JSON projection of a document honoring the type present at each level.
// This package operates on raw JSON documents using
// github.com/tidwall/gjson for reads and github.com/tidwall/sjson for
// writes/deletes, rather than reflecting over Go structs directly — the
// same operation class gjson/sjson exist for.
package fieldmask
