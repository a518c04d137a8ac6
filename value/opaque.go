package value

import "github.com/chazu/scriptbridge/errs"

// ModelField is the Map field that conventionally carries a state object's
// serialized form in results of "fit"/"step" style calls.
const ModelField = "model"

// Opaque extracts an opaque serialized sub-state from m. The payload is
// returned untouched. present is false when the field is missing or Null;
// a present zero-length blob is the "no state yet" sentinel and is not an
// error. Any other kind under the field is a TypeMismatch.
func Opaque(m *Map, field string) (blob []byte, present bool, err error) {
	v, ok := m.Get(field)
	if !ok || IsNull(v) {
		return nil, false, nil
	}
	b, ok := v.(Bytes)
	if !ok {
		return nil, false, errs.New(errs.TypeMismatch, "opaque", "field %q holds %s, not bytes", field, v.Kind())
	}
	return []byte(b), true, nil
}
