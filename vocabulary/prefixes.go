package vocabulary

import (
	"maps"
	"slices"
	"strings"
)

// Prefixes maps a namespace prefix ("ex") to its namespace IRI ("http://example.org/").
type Prefixes map[string]string

// Merge returns a new table holding p overlaid with other.
func (p Prefixes) Merge(other Prefixes) Prefixes {
	out := make(Prefixes, len(p)+len(other))
	maps.Copy(out, p)
	maps.Copy(out, other)
	return out
}

// ExtendURI expands a prefixed identifier. Unknown prefixes and full IRIs are
// returned unchanged.
func (p Prefixes) ExtendURI(id string) string {
	prefix, local, ok := SplitPrefixed(id)
	if !ok {
		return id
	}
	ns, known := p[prefix]
	if !known {
		return id
	}
	return ns + local
}

// CompactURI rewrites a full IRI into prefixed form using the longest matching
// namespace. IRIs outside every namespace are returned unchanged.
func (p Prefixes) CompactURI(iri string) string {
	best, bestNS := "", ""
	for _, prefix := range slices.Sorted(maps.Keys(p)) {
		ns := p[prefix]
		if ns != "" && strings.HasPrefix(iri, ns) && len(ns) > len(bestNS) {
			best, bestNS = prefix, ns
		}
	}
	if bestNS == "" {
		return iri
	}
	return best + ":" + strings.TrimPrefix(iri, bestNS)
}

// SplitPrefixed splits "ex:Person" into ("ex", "Person"). It reports false for
// full IRIs ("http://...", "urn:..." with "//" or a scheme-only form) and for
// identifiers without a colon.
func SplitPrefixed(id string) (prefix, local string, ok bool) {
	i := strings.Index(id, ":")
	if i < 0 {
		return "", id, false
	}
	prefix, local = id[:i], id[i+1:]
	if strings.HasPrefix(local, "//") || strings.ContainsAny(prefix, "/#") {
		return "", id, false
	}
	return prefix, local, true
}

// LocalName returns the part of an identifier after its namespace: the text after
// the prefix colon for prefixed names, or after the last '#' or '/' for IRIs.
func LocalName(id string) string {
	if _, local, ok := SplitPrefixed(id); ok && !strings.ContainsAny(local, "/#:") {
		return local
	}
	if i := strings.LastIndexAny(id, "#/"); i >= 0 && i < len(id)-1 {
		return id[i+1:]
	}
	if i := strings.LastIndex(id, ":"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// Namespace returns the prefix of a prefixed identifier, or "" when there is none.
func Namespace(id string) string {
	prefix, _, ok := SplitPrefixed(id)
	if !ok {
		return ""
	}
	return prefix
}
