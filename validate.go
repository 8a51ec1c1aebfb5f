package herdcache

import "reflect"

// structured reports whether v is an object or an array: a struct, map, slice or
// array, possibly behind pointers or interfaces. Nil values, scalars, strings and
// byte slices are not.
func structured(v any) bool {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return false
	}

	switch rv.Kind() {
	case reflect.Struct:
		return true
	case reflect.Array:
		return rv.Type().Elem().Kind() != reflect.Uint8
	case reflect.Map:
		return !rv.IsNil()
	case reflect.Slice:
		return !rv.IsNil() && rv.Type().Elem().Kind() != reflect.Uint8
	default:
		return false
	}
}
