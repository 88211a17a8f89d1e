package roi

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Categories groups region indexes by the tag found in their names.
type Categories struct {
	// Tags lists the distinct tags in order of first encounter.
	Tags []string
	// Members maps a tag to the indexes of the regions carrying it, in order.
	Members map[string][]int
}

// SplitName splits a region name on a literal separator. Trailing empty
// tokens are dropped, so "A_" yields ["A"] and "_" yields no token at all.
func SplitName(name, sep string) []string {
	if sep == "" {
		return []string{name}
	}
	tokens := strings.Split(name, sep)
	for len(tokens) > 0 && tokens[len(tokens)-1] == "" {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

// Tag returns the tag of a name and whether the name carries one. A name is
// tagged when splitting it yields more than one token; the tag is the first.
func Tag(name, sep string) (string, bool) {
	tokens := SplitName(name, sep)
	if len(tokens) > 1 {
		return tokens[0], true
	}
	return "", false
}

// Structure returns the first token of a name, or the full name when
// splitting yields no token.
func Structure(name, sep string) string {
	tokens := SplitName(name, sep)
	if len(tokens) == 0 {
		return name
	}
	return tokens[0]
}

// Categorize records, for every tagged region of c, its index under its tag.
// Regions without the separator are left out.
func Categorize(c *Collection, sep string) Categories {
	cat := Categories{Members: make(map[string][]int)}
	for i := 0; i < c.Len(); i++ {
		tag, ok := Tag(c.Get(i).Name, sep)
		if !ok {
			continue
		}
		if _, seen := cat.Members[tag]; !seen {
			cat.Tags = append(cat.Tags, tag)
		}
		cat.Members[tag] = append(cat.Members[tag], i)
	}
	return cat
}

// Fuse builds one region per tag, in tag order. A tag with a single member
// yields that member unchanged apart from its name; several members are
// merged into their pixel union. Fused regions are named after the tag and
// take the first member's color.
func Fuse(c *Collection, sep string, log logrus.FieldLogger) (*Collection, Categories, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	cat := Categorize(c, sep)
	fused := NewCollection()

	for i, tag := range cat.Tags {
		log.WithFields(logrus.Fields{"stage": "fusing", "current": i + 1, "total": len(cat.Tags)}).Debug("Processing category")

		idx := cat.Members[tag]
		first := c.Get(idx[0])

		var merged *Region
		if len(idx) > 1 {
			u, err := c.Union(idx...)
			if err != nil {
				return nil, cat, err
			}
			merged = u
		} else {
			merged = first.Clone()
		}
		merged.Name = tag
		merged.Color = first.Color
		fused.Append(merged)
	}
	return fused, cat, nil
}
