package auth

import "strings"

// AllowList is the immutable set of provider subjects permitted to act as admins.
// It is safe for concurrent reads.
type AllowList struct {
	subjects map[string]struct{}
}

// ParseAllowList builds an AllowList from a comma separated list of numeric subjects.
// Every character other than ASCII digits and commas is dropped before splitting,
// so "12 3,abc45" yields {"123", "45"}.
func ParseAllowList(raw string) AllowList {
	filtered := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == ',' {
			return r
		}
		return -1
	}, raw)

	subjects := make(map[string]struct{})
	for _, subject := range strings.Split(filtered, ",") {
		if subject == "" {
			continue
		}
		subjects[subject] = struct{}{}
	}
	return AllowList{subjects: subjects}
}

// Contains reports whether subject is on the list.
func (l AllowList) Contains(subject string) bool {
	if subject == "" {
		return false
	}
	_, ok := l.subjects[subject]
	return ok
}

// Len returns the number of distinct subjects.
func (l AllowList) Len() int {
	return len(l.subjects)
}
