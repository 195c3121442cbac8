package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = ":"

// DefaultKeyNamespace prefixes every key built by NewDefaultKeySerializer.
const DefaultKeyNamespace = "summary"

const (
	userSegment   = "user"
	systemSegment = "system"
)

// namespacedKeySerializer renders segments deterministically under a fixed namespace.
// Identifiers implementing fmt.Stringer (uuid.UUID) render through String so keys
// stay readable in redis-cli and stable across processes.
type namespacedKeySerializer struct {
	namespace string
}

// NewDefaultKeySerializer returns a serializer rooted at DefaultKeyNamespace.
func NewDefaultKeySerializer() KeySerializer {
	return &namespacedKeySerializer{namespace: DefaultKeyNamespace}
}

// NewKeySerializer returns a serializer rooted at namespace. An empty namespace
// produces unprefixed keys.
func NewKeySerializer(namespace string) KeySerializer {
	return &namespacedKeySerializer{namespace: strings.Trim(namespace, KeySeparator)}
}

// SerializeKey joins the namespace, segment and rendered args.
func (s *namespacedKeySerializer) SerializeKey(method string, args ...any) string {
	parts := make([]string, 0, len(args)+2)
	if s.namespace != "" {
		parts = append(parts, s.namespace)
	}
	parts = append(parts, method)

	for _, arg := range args {
		parts = append(parts, s.serializeValue(arg))
	}

	return strings.Join(parts, KeySeparator)
}

// UserSummaryKey is the key holding one user's summary.
func UserSummaryKey(s KeySerializer, userID uuid.UUID) string {
	return s.SerializeKey(userSegment, userID)
}

// SystemSummaryKey is the key holding the system-wide summary.
func SystemSummaryKey(s KeySerializer) string {
	return s.SerializeKey(systemSegment)
}

func (s *namespacedKeySerializer) serializeValue(v any) string {
	if v == nil {
		return "nil"
	}

	if str, ok := v.(fmt.Stringer); ok {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Ptr && rv.IsNil() {
			return "nil"
		}
		return str.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		return s.serializeValue(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil"
		}
		return s.serializeList(rv)
	case reflect.Array:
		return s.serializeList(rv)
	case reflect.Map:
		if rv.IsNil() {
			return "map:nil"
		}
		return s.serializeMap(rv)
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return fmt.Sprintf("%v", v)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("fallback:%s", rv.Type().String())
	}
	return string(data)
}

func (s *namespacedKeySerializer) serializeList(rv reflect.Value) string {
	parts := make([]string, rv.Len())
	for i := range parts {
		parts[i] = s.serializeValue(rv.Index(i).Interface())
	}
	return strings.Join(parts, ",")
}

// serializeMap sorts rendered pairs so iteration order never leaks into keys.
func (s *namespacedKeySerializer) serializeMap(rv reflect.Value) string {
	pairs := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, s.serializeValue(iter.Key().Interface())+"="+s.serializeValue(iter.Value().Interface()))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}
