// Package format holds the display formatting shared by the suggestion
// store, the dispatcher and the console: field labels, list-field diffs,
// option counts, quick-option directives and markdown rendering.
package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/codeready-toolchain/storeassist/pkg/models"
)

var fieldLabels = map[string]string{
	"title":             "Title",
	"name":              "Name",
	"description":       "Description",
	"short_description": "Short description",
	"seo_title":         "SEO title",
	"seo_description":   "SEO description",
	"meta_description":  "Meta description",
	"slug":              "URL slug",
	"sku":               "SKU",
	"price":             "Price",
	"sale_price":        "Sale price",
	"tags":              "Tags",
	"categories":        "Categories",
	"subcategories":     "Subcategories",
	"image_alt":         "Image alt text",
}

// FieldLabel returns the human-readable label of a field key.
func FieldLabel(field string) string {
	if label, ok := fieldLabels[field]; ok {
		return label
	}
	words := strings.Fields(strings.ReplaceAll(field, "_", " "))
	if len(words) == 0 {
		return field
	}
	words[0] = strings.ToUpper(words[0][:1]) + words[0][1:]
	return strings.Join(words, " ")
}

// OptionsLabel returns "1 option" or "N options".
func OptionsLabel(n int) string {
	if n == 1 {
		return "1 option"
	}
	return strconv.Itoa(n) + " options"
}

// SplitList normalizes a list-field value into its members. Strings are
// split on commas; slices are flattened. Members are trimmed and blanks
// dropped.
func SplitList(v any) []string {
	var raw []string
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		raw = strings.Split(val, ",")
	case []string:
		raw = val
	case []any:
		for _, item := range val {
			raw = append(raw, SplitList(item)...)
		}
	default:
		raw = []string{fmt.Sprint(val)}
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// DiffList compares two list values as sets. Added holds members of
// suggested missing from current; removed holds the reverse. Both keep the
// order of their source list; comparison ignores case.
func DiffList(current, suggested any) (added, removed []string) {
	cur := SplitList(current)
	sug := SplitList(suggested)
	inCur := make(map[string]bool, len(cur))
	for _, s := range cur {
		inCur[strings.ToLower(s)] = true
	}
	inSug := make(map[string]bool, len(sug))
	for _, s := range sug {
		key := strings.ToLower(s)
		if !inCur[key] && !inSug[key] {
			added = append(added, s)
		}
		inSug[key] = true
	}
	seen := make(map[string]bool, len(cur))
	for _, s := range cur {
		key := strings.ToLower(s)
		if !inSug[key] && !seen[key] {
			removed = append(removed, s)
		}
		seen[key] = true
	}
	return added, removed
}

// NormalizeValue converts a suggested value into the form persisted for
// the field: list fields become string slices, everything else is kept.
func NormalizeValue(field string, v any) any {
	if models.IsListField(field) {
		list := SplitList(v)
		if list == nil {
			list = []string{}
		}
		return list
	}
	return v
}

// DisplayValue renders a field value for display.
func DisplayValue(field string, v any) string {
	if v == nil {
		return ""
	}
	if models.IsListField(field) {
		return strings.Join(SplitList(v), ", ")
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
