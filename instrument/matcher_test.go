package instrument

import "testing"

func TestExactMatcher(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		patterns []string
		want     bool
	}{
		{
			name:     "match by member name only",
			patterns: []string{"Select"},
			method:   "System.Reactive.Linq.Observable::Select",
			want:     true,
		},
		{
			name:     "match by Type::Name",
			patterns: []string{"System.Reactive.Linq.Observable::Select"},
			method:   "System.Reactive.Linq.Observable::Select",
			want:     true,
		},
		{
			name:     "no match different type",
			patterns: []string{"System.Reactive.Linq.Observable::Select"},
			method:   "System.Linq.Enumerable::Select",
			want:     false,
		},
		{
			name:     "no match different name",
			patterns: []string{"Select"},
			method:   "System.Reactive.Linq.Observable::Where",
			want:     false,
		},
		{
			name:     "raw token never matches a bare name",
			patterns: []string{"0a000001"},
			method:   "0x0a000001",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewExactMatcher(tt.patterns)
			if got := m.MatchMethod(tt.method); got != tt.want {
				t.Errorf("MatchMethod(%q) = %v, want %v", tt.method, got, tt.want)
			}
		})
	}
}

func TestWildcardMatcher(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		patterns []string
		want     bool
	}{
		{
			name:     "exact",
			patterns: []string{"App.Program::Main"},
			method:   "App.Program::Main",
			want:     true,
		},
		{
			name:     "type wildcard",
			patterns: []string{"App.Program::*"},
			method:   "App.Program::Run",
			want:     true,
		},
		{
			name:     "type wildcard other type",
			patterns: []string{"App.Program::*"},
			method:   "App.Programs::Run",
			want:     false,
		},
		{
			name:     "namespace wildcard",
			patterns: []string{"System.Reactive.*"},
			method:   "System.Reactive.Linq.Observable::Return",
			want:     true,
		},
		{
			name:     "namespace wildcard does not match member",
			patterns: []string{"App.*"},
			method:   "Other.Type::App.Run",
			want:     false,
		},
		{
			name:     "bare name",
			patterns: []string{"Subscribe"},
			method:   "class System.IObservable`1<string>::Subscribe",
			want:     true,
		},
		{
			name:     "match all",
			patterns: []string{"*"},
			method:   "anything",
			want:     true,
		},
		{
			name:     "empty patterns",
			patterns: nil,
			method:   "App.Program::Main",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewWildcardMatcher(tt.patterns)
			if got := m.MatchMethod(tt.method); got != tt.want {
				t.Errorf("MatchMethod(%q) = %v, want %v", tt.method, got, tt.want)
			}
		})
	}
}

func TestPrefixMatcher(t *testing.T) {
	m := NewPrefixMatcher([]string{"App.Internal.", "App.Program::Debug"})
	tests := []struct {
		method string
		want   bool
	}{
		{"App.Internal.Cache::Get", true},
		{"App.Program::DebugDump", true},
		{"App.Program::Main", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := m.MatchMethod(tt.method); got != tt.want {
			t.Errorf("MatchMethod(%q) = %v, want %v", tt.method, got, tt.want)
		}
	}
}

func TestCompositeMatcher(t *testing.T) {
	m := NewCompositeMatcher(
		NewExactMatcher([]string{"A::B"}),
		nil,
		NewPrefixMatcher([]string{"C."}),
	)
	tests := []struct {
		method string
		want   bool
	}{
		{"A::B", true},
		{"C.D::E", true},
		{"A::C", false},
	}
	for _, tt := range tests {
		if got := m.MatchMethod(tt.method); got != tt.want {
			t.Errorf("MatchMethod(%q) = %v, want %v", tt.method, got, tt.want)
		}
	}

	if NewCompositeMatcher().MatchMethod("A::B") {
		t.Error("empty composite matched")
	}
}
