package state

import (
	"fmt"
	"reflect"
	"strings"
)

// FieldNotFoundError reports an update-mask path that cannot be resolved
// against wire.State's shape at all, as opposed to one that merely names a
// currently-absent map entry (which is a valid deletion). Grounded on
// original_source/server/src/ankaios_server/server_state.rs's
// UpdateStateError::FieldNotFound: its update_state walks the mask against
// the new document's Object representation and raises FieldNotFound when a
// segment can't be set or removed there, which for this struct-backed
// implementation means the segment doesn't name a real field, or a scalar
// field is asked to take on more path segments below it.
type FieldNotFoundError struct {
	Path string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field not found: %s", e.Path)
}

// validateMaskShape checks path's dot segments against wrappedCurrentState's
// actual struct shape, descending through map/slice element types for the
// dynamic parts of the tree (workload names, config names, cronjob names,
// access-rule indices) without checking those keys themselves, since they
// are user-defined data, not schema.
func validateMaskShape(path string) error {
	t := reflect.TypeOf(wrappedCurrentState{})
	segments := strings.Split(path, ".")

	for i := 0; i < len(segments); i++ {
		switch t.Kind() {
		case reflect.Ptr:
			t = t.Elem()
			i--
			continue

		case reflect.Struct:
			field, ok := jsonField(t, segments[i])
			if !ok {
				return &FieldNotFoundError{Path: path}
			}
			t = field.Type

		case reflect.Map, reflect.Slice:
			// segments[i] is a dynamic key (map key or slice index); it
			// names data, not schema, so it's accepted unconditionally and
			// the walk continues into the element type.
			t = t.Elem()

		default:
			// t is a scalar (string, bool, an enum's underlying int32...):
			// nothing further can legitimately follow it.
			return &FieldNotFoundError{Path: path}
		}
	}
	return nil
}

func jsonField(t reflect.Type, name string) (reflect.StructField, bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if tag == name {
			return f, true
		}
	}
	return reflect.StructField{}, false
}
