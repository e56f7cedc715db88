package fieldmask

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Project returns the subset of srcJSON reachable by the union of masks. An
// empty mask set returns srcJSON unchanged. A mask path that resolves to
// nothing in srcJSON is silently skipped — it may name a currently-absent
// map entry, which is not an error.
func Project(srcJSON []byte, masks []string) ([]byte, error) {
	if len(masks) == 0 {
		return srcJSON, nil
	}

	out := []byte("{}")
	for _, path := range masks {
		res := gjson.GetBytes(srcJSON, path)
		if !res.Exists() {
			continue
		}
		var err error
		out, err = sjson.SetRawBytes(out, path, []byte(res.Raw))
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Apply replaces, within targetJSON, the subtree at each path in masks with
// the subtree at the same path in sourceJSON. A path absent from
// sourceJSON deletes the corresponding entry from targetJSON. A path whose
// intermediate objects are absent from targetJSON creates them. An empty
// mask set replaces targetJSON wholesale with sourceJSON.
func Apply(targetJSON, sourceJSON []byte, masks []string) ([]byte, error) {
	if len(masks) == 0 {
		return sourceJSON, nil
	}

	out := targetJSON
	for _, path := range masks {
		res := gjson.GetBytes(sourceJSON, path)
		var err error
		if !res.Exists() {
			out, err = sjson.DeleteBytes(out, path)
		} else {
			out, err = sjson.SetRawBytes(out, path, []byte(res.Raw))
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Classify infers the patch operation a single path underwent between
// oldJSON and newJSON: present only in new is ADD, present only in old is
// REMOVE, present in both is REPLACE. Absent from both is reported as
// REPLACE (callers should not invoke Classify on untouched paths).
type Operation int

const (
	OpAdd Operation = iota
	OpRemove
	OpReplace
)

func Classify(oldJSON, newJSON []byte, path string) Operation {
	oldExists := gjson.GetBytes(oldJSON, path).Exists()
	newExists := gjson.GetBytes(newJSON, path).Exists()
	switch {
	case !oldExists && newExists:
		return OpAdd
	case oldExists && !newExists:
		return OpRemove
	default:
		return OpReplace
	}
}

// Get resolves a single dot-path against a document, returning its raw JSON
// and whether it was present.
func Get(docJSON []byte, path string) (raw []byte, ok bool) {
	res := gjson.GetBytes(docJSON, path)
	if !res.Exists() {
		return nil, false
	}
	return []byte(res.Raw), true
}
