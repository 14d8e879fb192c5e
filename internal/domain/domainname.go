package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Normalize turns user input such as "https://WWW.Example.com/path" into a
// bare lowercase host ("www.example.com").
func Normalize(raw string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "https://")
	if i := strings.IndexByte(d, '/'); i >= 0 {
		d = d[:i]
	}
	if d == "" || strings.ContainsAny(d, " \t\r\n") {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
	}
	return d, nil
}

// Variants returns the domain and its www counterpart.
func Variants(d string) []string {
	if strings.HasPrefix(d, "www.") {
		return []string{d, d[len("www."):]}
	}
	return []string{d, "www." + d}
}

// ExpandAll returns the sorted union of Variants over domains.
func ExpandAll(domains []string) []string {
	set := VariantSet(domains)
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// VariantSet is ExpandAll as a lookup set.
func VariantSet(domains []string) map[string]struct{} {
	set := make(map[string]struct{}, len(domains)*2)
	for _, d := range domains {
		for _, v := range Variants(d) {
			if v == "" {
				continue
			}
			set[v] = struct{}{}
		}
	}
	return set
}
