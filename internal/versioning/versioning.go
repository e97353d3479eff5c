// Package versioning computes deck version identifiers under the semantic
// (MAJOR.MINOR.PATCH) and date-revision (YY.MM.DD-rev.N) schemes.
package versioning

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Scheme identifies a versioning scheme.
type Scheme string

const (
	SchemeSemantic Scheme = "semantic"
	SchemeDate     Scheme = "date"
)

// Unsaved is the sentinel version of a deck that was never committed.
const Unsaved = "unsaved"

// NoChangeCount signals that the caller has no change count to offer.
const NoChangeCount = -1

// Semantic bump thresholds, in changed card units.
const (
	patchMaxChanges = 2
	minorMaxChanges = 10
)

var (
	// ErrChangeCountRequired is returned when a semantic bump is requested
	// without a change count.
	ErrChangeCountRequired = errors.New("change count required for semantic versioning")

	// ErrInvalidVersion is returned for version strings that do not parse
	// under the requested scheme.
	ErrInvalidVersion = errors.New("invalid version")

	// ErrUnknownScheme is returned for schemes other than semantic and date.
	ErrUnknownScheme = errors.New("unknown versioning scheme")
)

var (
	semanticPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)$`)
	datePattern     = regexp.MustCompile(`^(\d{2})\.(\d{2})\.(\d{2})-rev\.(\d+)$`)
)

// ParseScheme validates a scheme name. The empty string maps to semantic,
// the default for manifests written before schemes existed.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(s))) {
	case SchemeSemantic, "":
		return SchemeSemantic, nil
	case SchemeDate:
		return SchemeDate, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownScheme, s)
	}
}

// SemanticVersion is a parsed MAJOR.MINOR.PATCH version.
type SemanticVersion struct {
	Major, Minor, Patch int
}

func (v SemanticVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// DateVersion is a parsed YY.MM.DD-rev.N version.
type DateVersion struct {
	Year, Month, Day int
	Revision         int
}

func (v DateVersion) String() string {
	return fmt.Sprintf("%02d.%02d.%02d-rev.%d", v.Year, v.Month, v.Day, v.Revision)
}

func (v DateVersion) sameDay(other DateVersion) bool {
	return v.Year == other.Year && v.Month == other.Month && v.Day == other.Day
}

// ParseSemantic parses a semantic version.
func ParseSemantic(s string) (SemanticVersion, error) {
	m := semanticPattern.FindStringSubmatch(s)
	if m == nil {
		return SemanticVersion{}, fmt.Errorf("%w: %q is not MAJOR.MINOR.PATCH", ErrInvalidVersion, s)
	}
	var parts [3]int
	for i := range parts {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return SemanticVersion{}, fmt.Errorf("%w: %q: %v", ErrInvalidVersion, s, err)
		}
		parts[i] = n
	}
	return SemanticVersion{Major: parts[0], Minor: parts[1], Patch: parts[2]}, nil
}

// ParseDate parses a date-revision version.
func ParseDate(s string) (DateVersion, error) {
	m := datePattern.FindStringSubmatch(s)
	if m == nil {
		return DateVersion{}, fmt.Errorf("%w: %q is not YY.MM.DD-rev.N", ErrInvalidVersion, s)
	}
	yy, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	dd, _ := strconv.Atoi(m[3])
	rev, err := strconv.Atoi(m[4])
	if err != nil {
		return DateVersion{}, fmt.Errorf("%w: %q: %v", ErrInvalidVersion, s, err)
	}
	if mm < 1 || mm > 12 || dd < 1 || dd > 31 || rev < 1 {
		return DateVersion{}, fmt.Errorf("%w: %q out of range", ErrInvalidVersion, s)
	}
	return DateVersion{Year: yy, Month: mm, Day: dd, Revision: rev}, nil
}

// DetectScheme classifies a version string. It reports false for the
// Unsaved sentinel and anything unparseable.
func DetectScheme(version string) (Scheme, bool) {
	if version == Unsaved {
		return "", false
	}
	if _, err := ParseSemantic(version); err == nil {
		return SchemeSemantic, true
	}
	if _, err := ParseDate(version); err == nil {
		return SchemeDate, true
	}
	return "", false
}

// Engine computes versions. Date-revision versions read the clock.
type Engine struct {
	now func() time.Time
}

// NewEngine returns an engine using the wall clock.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// NewEngineWithClock returns an engine using the given clock.
func NewEngineWithClock(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

func (e *Engine) today() DateVersion {
	t := e.now()
	return DateVersion{Year: t.Year() % 100, Month: int(t.Month()), Day: t.Day(), Revision: 1}
}

// Initial returns the first version under scheme.
func (e *Engine) Initial(scheme Scheme) (string, error) {
	switch scheme {
	case SchemeSemantic:
		return SemanticVersion{Patch: 1}.String(), nil
	case SchemeDate:
		return e.today().String(), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
}

// Next computes the version following current.
//
// Semantic bumps by total changed card units: up to 2 is a patch, 3 to 10 a
// minor, 11 or more a major. Date versions ignore changeCount: the revision
// increments on the same calendar day and resets to 1 on a new day.
func (e *Engine) Next(current string, scheme Scheme, changeCount int) (string, error) {
	switch scheme {
	case SchemeSemantic:
		if changeCount < 0 {
			return "", ErrChangeCountRequired
		}
		v, err := ParseSemantic(current)
		if err != nil {
			return "", err
		}
		switch {
		case changeCount <= patchMaxChanges:
			v.Patch++
		case changeCount <= minorMaxChanges:
			v.Minor++
			v.Patch = 0
		default:
			v.Major++
			v.Minor = 0
			v.Patch = 0
		}
		return v.String(), nil

	case SchemeDate:
		today := e.today()
		if prev, err := ParseDate(current); err == nil && prev.sameDay(today) {
			prev.Revision++
			return prev.String(), nil
		}
		return today.String(), nil

	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
}

// Migrate converts current from one scheme to another. Switching schemes
// restarts numbering at the target scheme's initial version.
func (e *Engine) Migrate(current string, from, to Scheme) (string, error) {
	if from == to {
		return current, nil
	}
	return e.Initial(to)
}

// Order reports whether a comparison result is meaningful.
type Order int

const (
	// OrderDefined means both versions parsed under the same scheme.
	OrderDefined Order = iota
	// OrderUndefined means the versions use different schemes (or did not
	// parse) and the result is a raw string comparison. Do not rely on it.
	OrderUndefined
)

// Compare orders two versions field by field within one scheme.
func Compare(a, b string) (int, Order) {
	sa, okA := DetectScheme(a)
	sb, okB := DetectScheme(b)
	if !okA || !okB || sa != sb {
		return strings.Compare(a, b), OrderUndefined
	}

	if sa == SchemeSemantic {
		va, _ := ParseSemantic(a)
		vb, _ := ParseSemantic(b)
		return compareFields(
			[]int{va.Major, va.Minor, va.Patch},
			[]int{vb.Major, vb.Minor, vb.Patch},
		), OrderDefined
	}

	va, _ := ParseDate(a)
	vb, _ := ParseDate(b)
	return compareFields(
		[]int{va.Year, va.Month, va.Day, va.Revision},
		[]int{vb.Year, vb.Month, vb.Day, vb.Revision},
	), OrderDefined
}

func compareFields(a, b []int) int {
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}
