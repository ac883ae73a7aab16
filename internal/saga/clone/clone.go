// Package clone provides structural deep-copy and equality helpers used by
// the state manager and the selector engine. State values are treated as
// opaque records: clone never inspects field semantics, only their shapes.
package clone

import "reflect"

// Clone returns a structural deep copy of v, plus the field paths (if any)
// that could not be cloned. Structs, maps, slices, arrays, pointers and
// interfaces holding any of those are copied recursively. Functions,
// channels and unsafe pointers cannot be meaningfully copied; a field of
// one of those kinds is left at its zero value in the copy rather than
// aliasing the original, and its path is reported in the returned slice
// instead of in shared package state, so concurrent callers (distinct
// state.Manager instances, for instance) never race on the report.
func Clone[T any](v T) (T, []string) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return v, nil
	}

	var unsupported []string
	out := cloneValue(rv, "$", &unsupported)
	result, _ := out.Interface().(T)
	return result, unsupported
}

// DeepEqual reports whether a and b are structurally identical. It is used
// only by selector equality when a consumer opts into WithDeepEqual.
func DeepEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

func cloneValue(v reflect.Value, path string, unsupported *[]string) reflect.Value {
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(cloneValue(v.Elem(), path, unsupported))
		return out

	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		elem := cloneValue(v.Elem(), path, unsupported)
		out := reflect.New(v.Type()).Elem()
		out.Set(elem)
		return out

	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			field := v.Type().Field(i)
			fv := v.Field(i)
			dst := out.Field(i)
			if !dst.CanSet() {
				// unexported field: best effort via unsafe is deliberately
				// avoided here, the zero value is kept.
				if k := fv.Kind(); k == reflect.Func || k == reflect.Chan || k == reflect.UnsafePointer {
					*unsupported = append(*unsupported, path+"."+field.Name)
				}
				continue
			}
			dst.Set(cloneValue(fv, path+"."+field.Name, unsupported))
		}
		return out

	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneValue(v.Index(i), path, unsupported))
		}
		return out

	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneValue(v.Index(i), path, unsupported))
		}
		return out

	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneValue(iter.Value(), path, unsupported))
		}
		return out

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		*unsupported = append(*unsupported, path)
		return reflect.Zero(v.Type())

	default:
		// primitives, strings, bools: values are already copied by Value
		return v
	}
}
