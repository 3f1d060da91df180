// Package classify maps API operation names and wire verbs to CRUD
// categories and extracts a candidate resource name.
package classify

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/i2y/schemair/internal/naming"
)

// Category is the CRUD bucket an operation falls into.
type Category int

const (
	Unclassified Category = iota
	Create
	Read
	Update
	Delete
)

func (c Category) String() string {
	switch c {
	case Create:
		return "create"
	case Read:
		return "read"
	case Update:
		return "update"
	case Delete:
		return "delete"
	}
	return "unclassified"
}

// Categories lists the classifiable categories in priority order.
var Categories = []Category{Create, Read, Update, Delete}

// aliases is the priority-ordered verb-prefix table. The first category with
// a matching alias wins, so "PutBucketPolicy" is a Create even though it is
// semantically an update. This is a known limitation of the heuristic.
var aliases = []struct {
	category Category
	prefixes []string
}{
	{Create, []string{"create", "put", "insert"}},
	{Read, []string{"get", "describe", "head", "list"}},
	{Update, []string{"update", "modify", "patch"}},
	{Delete, []string{"delete", "remove"}},
}

// Classification is the result of classifying one operation.
type Classification struct {
	Category Category
	// Resource is the normalized, singular resource token. Empty when the
	// name carries no resource (e.g. a bare "insert").
	Resource string
	// ByVerb is set when the name matched no alias and the category came
	// from the wire verb.
	ByVerb bool
}

// Classify returns the CRUD category of an operation and a best-effort
// resource token. verb is the HTTP method when the format has one and may
// be empty.
func Classify(name, verb string) Classification {
	if c, rest, ok := matchPrefix(name); ok {
		return Classification{Category: c, Resource: resourceToken(name, rest)}
	}
	if c := fromVerb(verb); c != Unclassified {
		return Classification{Category: c, ByVerb: true}
	}
	return Classification{}
}

// ClassifyVerbFirst is Classify for formats whose wire verb is authoritative,
// such as REST paths: the HTTP method decides the category and the name
// aliases are only consulted for unknown verbs. Every result ranks equally,
// so ByVerb is never set.
func ClassifyVerbFirst(name, verb string) Classification {
	if c := fromVerb(verb); c != Unclassified {
		return Classification{Category: c}
	}
	cl := Classify(name, "")
	cl.ByVerb = false
	return cl
}

// matchPrefix finds the longest alias of the first matching category. The
// alias must end on a word boundary.
func matchPrefix(name string) (Category, string, bool) {
	lower := strings.ToLower(name)
	for _, entry := range aliases {
		best := ""
		for _, p := range entry.prefixes {
			if len(p) > len(best) && strings.HasPrefix(lower, p) && atBoundary(name, len(p)) {
				best = p
			}
		}
		if best != "" {
			return entry.category, name[len(best):], true
		}
	}
	return Unclassified, "", false
}

func atBoundary(name string, i int) bool {
	if i >= len(name) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(name[i:])
	return r == '_' || r == '-' || r == ' ' || r == '.' || unicode.IsUpper(r) || unicode.IsDigit(r)
}

// resourceToken extracts the resource from the part of the name after the
// verb. Separator-delimited names use the first segment ("get_bucket_location"
// yields "bucket"); camel and Pascal names use the whole remainder
// ("GetBucketAcl" yields "bucket_acl").
func resourceToken(name, rest string) string {
	rest = strings.TrimLeft(rest, "_- .")
	if rest == "" {
		return ""
	}
	if strings.ContainsAny(name, "_- ") {
		if i := strings.IndexAny(rest, "_- "); i >= 0 {
			rest = rest[:i]
		}
	}
	return naming.Singularize(naming.Normalize(rest))
}

func fromVerb(verb string) Category {
	switch strings.ToUpper(verb) {
	case "POST":
		return Create
	case "GET", "HEAD":
		return Read
	case "PUT", "PATCH":
		return Update
	case "DELETE":
		return Delete
	}
	return Unclassified
}
