package versioning

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func fixedClock(year int, month time.Month, day int) func() time.Time {
	return func() time.Time { return time.Date(year, month, day, 15, 4, 5, 0, time.UTC) }
}

func TestDetectScheme(t *testing.T) {
	tests := []struct {
		version string
		want    Scheme
		ok      bool
	}{
		{"0.0.1", SchemeSemantic, true},
		{"12.40.7", SchemeSemantic, true},
		{"26.10.17-rev.1", SchemeDate, true},
		{"00.01.31-rev.42", SchemeDate, true},
		{"26.13.01-rev.1", "", false},
		{"26.10.32-rev.1", "", false},
		{"26.10.17-rev.0", "", false},
		{"2026.10.17-rev.1", "", false},
		{"1.2", "", false},
		{"v1.2.3", "", false},
		{"-1.2.3", "", false},
		{Unsaved, "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			got, ok := DetectScheme(tt.version)
			if got != tt.want || ok != tt.ok {
				t.Errorf("DetectScheme(%q) = %q, %v; want %q, %v", tt.version, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestNextSemantic(t *testing.T) {
	e := NewEngine()
	tests := []struct {
		current string
		changes int
		want    string
	}{
		{"1.2.3", 0, "1.2.4"},
		{"1.2.3", 1, "1.2.4"},
		{"1.2.3", 2, "1.2.4"},
		{"1.2.3", 3, "1.3.0"},
		{"1.2.3", 10, "1.3.0"},
		{"1.2.3", 11, "2.0.0"},
		{"1.2.3", 15, "2.0.0"},
		{"0.0.1", 100, "1.0.0"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s+%d", tt.current, tt.changes), func(t *testing.T) {
			got, err := e.Next(tt.current, SchemeSemantic, tt.changes)
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			if got != tt.want {
				t.Errorf("Next(%q, %d) = %q, want %q", tt.current, tt.changes, got, tt.want)
			}
		})
	}
}

func TestNextSemanticErrors(t *testing.T) {
	e := NewEngine()
	if _, err := e.Next("1.0.0", SchemeSemantic, NoChangeCount); !errors.Is(err, ErrChangeCountRequired) {
		t.Errorf("missing change count: got %v", err)
	}
	if _, err := e.Next("26.10.17-rev.1", SchemeSemantic, 1); !errors.Is(err, ErrInvalidVersion) {
		t.Errorf("date version under semantic scheme: got %v", err)
	}
	if _, err := e.Next("1.0.0", Scheme("calver"), 1); !errors.Is(err, ErrUnknownScheme) {
		t.Errorf("unknown scheme: got %v", err)
	}
}

func TestSemanticMonotonicity(t *testing.T) {
	e := NewEngine()

	v := "3.4.5"
	for i := 0; i < 5; i++ {
		next, err := e.Next(v, SchemeSemantic, i%3)
		if err != nil {
			t.Fatal(err)
		}
		a, _ := ParseSemantic(v)
		b, _ := ParseSemantic(next)
		if b.Patch <= a.Patch || b.Major != a.Major || b.Minor != a.Minor {
			t.Fatalf("patch bump %s -> %s violated monotonicity", v, next)
		}
		v = next
	}

	for _, changes := range []int{3, 7, 10} {
		next, _ := e.Next(v, SchemeSemantic, changes)
		a, _ := ParseSemantic(v)
		b, _ := ParseSemantic(next)
		if b.Minor != a.Minor+1 || b.Patch != 0 || b.Major != a.Major {
			t.Fatalf("minor bump %s -> %s with %d changes", v, next, changes)
		}
		v = next
	}

	for _, changes := range []int{11, 40} {
		next, _ := e.Next(v, SchemeSemantic, changes)
		a, _ := ParseSemantic(v)
		b, _ := ParseSemantic(next)
		if b.Major != a.Major+1 || b.Minor != 0 || b.Patch != 0 {
			t.Fatalf("major bump %s -> %s with %d changes", v, next, changes)
		}
		v = next
	}
}

func TestNextDate(t *testing.T) {
	e := NewEngineWithClock(fixedClock(2026, time.October, 17))

	first, err := e.Initial(SchemeDate)
	if err != nil {
		t.Fatal(err)
	}
	if first != "26.10.17-rev.1" {
		t.Fatalf("Initial(date) = %q", first)
	}

	second, _ := e.Next(first, SchemeDate, NoChangeCount)
	third, _ := e.Next(second, SchemeDate, 50)
	if second != "26.10.17-rev.2" || third != "26.10.17-rev.3" {
		t.Errorf("same-day revisions: %q, %q", second, third)
	}

	later := NewEngineWithClock(fixedClock(2026, time.October, 18))
	next, _ := later.Next(third, SchemeDate, 0)
	if next != "26.10.18-rev.1" {
		t.Errorf("next day = %q, want 26.10.18-rev.1", next)
	}

	fromSemantic, _ := e.Next("1.2.3", SchemeDate, 0)
	if fromSemantic != "26.10.17-rev.1" {
		t.Errorf("semantic current under date scheme = %q", fromSemantic)
	}
}

func TestInitialSemantic(t *testing.T) {
	got, err := NewEngine().Initial(SchemeSemantic)
	if err != nil || got != "0.0.1" {
		t.Errorf("Initial(semantic) = %q, %v", got, err)
	}
}

func TestMigrate(t *testing.T) {
	e := NewEngineWithClock(fixedClock(2026, time.October, 17))

	same, _ := e.Migrate("3.1.0", SchemeSemantic, SchemeSemantic)
	if same != "3.1.0" {
		t.Errorf("identity migration = %q", same)
	}
	toDate, _ := e.Migrate("3.1.0", SchemeSemantic, SchemeDate)
	if toDate != "26.10.17-rev.1" {
		t.Errorf("semantic -> date = %q", toDate)
	}
	toSemantic, _ := e.Migrate("26.10.17-rev.9", SchemeDate, SchemeSemantic)
	if toSemantic != "0.0.1" {
		t.Errorf("date -> semantic = %q", toSemantic)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b  string
		want  int
		order Order
	}{
		{"1.2.3", "1.2.3", 0, OrderDefined},
		{"1.2.3", "1.10.0", -1, OrderDefined},
		{"2.0.0", "1.99.99", 1, OrderDefined},
		{"26.10.17-rev.2", "26.10.17-rev.10", -1, OrderDefined},
		{"26.11.01-rev.1", "26.10.31-rev.9", 1, OrderDefined},
		{"1.2.3", "26.10.17-rev.1", -1, OrderUndefined},
		{"unsaved", "0.0.1", 1, OrderUndefined},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			got, order := Compare(tt.a, tt.b)
			if got != tt.want || order != tt.order {
				t.Errorf("Compare(%q, %q) = %d, %v; want %d, %v", tt.a, tt.b, got, order, tt.want, tt.order)
			}
		})
	}
}

func TestParseScheme(t *testing.T) {
	for input, want := range map[string]Scheme{"": SchemeSemantic, "semantic": SchemeSemantic, "DATE": SchemeDate} {
		got, err := ParseScheme(input)
		if err != nil || got != want {
			t.Errorf("ParseScheme(%q) = %q, %v", input, got, err)
		}
	}
	if _, err := ParseScheme("calver"); !errors.Is(err, ErrUnknownScheme) {
		t.Errorf("ParseScheme(calver) = %v", err)
	}
}
