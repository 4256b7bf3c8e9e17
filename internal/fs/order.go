package fs

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// NameOrder selects how entry names compare within the directory and file groups.
type NameOrder int

const (
	// OrderFold compares case-insensitively, falling back to byte order on ties.
	OrderFold NameOrder = iota
	// OrderExact compares raw bytes.
	OrderExact
	// OrderCollate uses the collation rules of Options.Locale.
	OrderCollate
)

// ParseNameOrder maps a config value to a NameOrder.
func ParseNameOrder(s string) (NameOrder, error) {
	switch strings.ToLower(s) {
	case "", "fold":
		return OrderFold, nil
	case "exact":
		return OrderExact, nil
	case "collate":
		return OrderCollate, nil
	}
	return OrderFold, fmt.Errorf("unknown name order %q", s)
}

func (o NameOrder) String() string {
	switch o {
	case OrderExact:
		return "exact"
	case OrderCollate:
		return "collate"
	default:
		return "fold"
	}
}

// Options controls listing filters and ordering.
type Options struct {
	Order        NameOrder
	Locale       string // BCP 47 tag used by OrderCollate
	ShowDotfiles bool
}

// DefaultOptions lists everything, case-insensitively ordered.
func DefaultOptions() Options {
	return Options{Order: OrderFold, Locale: "en", ShowDotfiles: true}
}

// SortEntries orders entries in place: directories first, then by name.
func SortEntries(entries []Entry, opts Options) {
	less := nameLess(opts)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return less(entries[i].Name, entries[j].Name)
	})
}

func nameLess(opts Options) func(a, b string) bool {
	switch opts.Order {
	case OrderExact:
		return func(a, b string) bool { return a < b }
	case OrderCollate:
		tag, err := language.Parse(opts.Locale)
		if err != nil {
			tag = language.English
		}
		// Collators are not safe for concurrent use; one per sort.
		c := collate.New(tag)
		return func(a, b string) bool {
			if r := c.CompareString(a, b); r != 0 {
				return r < 0
			}
			return a < b
		}
	default:
		return func(a, b string) bool {
			la, lb := strings.ToLower(a), strings.ToLower(b)
			if la != lb {
				return la < lb
			}
			return a < b
		}
	}
}
