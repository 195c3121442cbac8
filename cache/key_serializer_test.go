package cache

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func joinWithSeparator(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

func TestDefaultKeySerializer_SummaryKeys(t *testing.T) {
	serializer := NewDefaultKeySerializer()
	id := uuid.MustParse("6f1c2a8e-3b7d-4c55-9d0a-1f2e3d4c5b6a")

	if got, want := UserSummaryKey(serializer, id), "summary:user:6f1c2a8e-3b7d-4c55-9d0a-1f2e3d4c5b6a"; got != want {
		t.Errorf("UserSummaryKey() = %v, want %v", got, want)
	}
	if got, want := SystemSummaryKey(serializer), "summary:system"; got != want {
		t.Errorf("SystemSummaryKey() = %v, want %v", got, want)
	}
}

func TestKeySerializer_DistinctUsersNeverCollide(t *testing.T) {
	serializer := NewDefaultKeySerializer()
	seen := make(map[string]uuid.UUID)

	for i := 0; i < 200; i++ {
		id := uuid.New()
		key := UserSummaryKey(serializer, id)
		if other, ok := seen[key]; ok {
			t.Fatalf("key %q shared by %s and %s", key, other, id)
		}
		if key == SystemSummaryKey(serializer) {
			t.Fatalf("user key %q equals system key", key)
		}
		seen[key] = id
	}
}

func TestKeySerializer_Namespace(t *testing.T) {
	tests := []struct {
		name      string
		namespace string
		want      string
	}{
		{name: "custom", namespace: "tenant-a", want: "tenant-a:system"},
		{name: "trims separators", namespace: ":tenant-b:", want: "tenant-b:system"},
		{name: "empty", namespace: "", want: "system"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SystemSummaryKey(NewKeySerializer(tt.namespace))
			if got != tt.want {
				t.Errorf("SystemSummaryKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultKeySerializer_Values(t *testing.T) {
	serializer := NewKeySerializer("")
	value := 42

	tests := []struct {
		name   string
		method string
		args   []any
		want   string
	}{
		{name: "no args", method: "system", want: "system"},
		{name: "basic types", method: "page", args: []any{1, "x", true}, want: joinWithSeparator("page", "1", "x", "true")},
		{name: "nil interface", method: "m", args: []any{nil}, want: joinWithSeparator("m", "nil")},
		{name: "nil pointer", method: "m", args: []any{(*int)(nil)}, want: joinWithSeparator("m", "nil")},
		{name: "pointer", method: "m", args: []any{&value}, want: joinWithSeparator("m", "42")},
		{name: "nil stringer pointer", method: "m", args: []any{(*uuid.UUID)(nil)}, want: joinWithSeparator("m", "nil")},
		{name: "nil slice", method: "m", args: []any{([]int)(nil)}, want: joinWithSeparator("m", "slice:nil")},
		{name: "slice", method: "m", args: []any{[]int{3, 1, 2}}, want: joinWithSeparator("m", "3,1,2")},
		{name: "map sorted", method: "m", args: []any{map[string]int{"b": 2, "a": 1}}, want: joinWithSeparator("m", "a=1,b=2")},
		{name: "nil map", method: "m", args: []any{(map[string]int)(nil)}, want: joinWithSeparator("m", "map:nil")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := serializer.SerializeKey(tt.method, tt.args...)
			if got != tt.want {
				t.Errorf("SerializeKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func BenchmarkUserSummaryKey(b *testing.B) {
	serializer := NewDefaultKeySerializer()
	id := uuid.New()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		UserSummaryKey(serializer, id)
	}
}
