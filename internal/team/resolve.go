package team

import "strings"

// Normalize lowercases s and removes whitespace and hyphens, so that
// "Claude-Code", "claude code" and "claudecode" all address the same member.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch r {
		case ' ', '\t', '\n', '\r', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Resolution is the outcome of resolving a batch of addressee strings.
type Resolution struct {
	Resolved   []*Member
	Unresolved []string
}

// Resolve maps each raw addressee to the first member whose normalized id,
// name, or displayName matches. Validation rejects duplicate ids, duplicate
// names and duplicate normalized displayNames; any other overlap (one
// member's name equal to another's id, names differing only in case or
// hyphens) resolves to the earlier member.
func (t *Team) Resolve(addressees []string) Resolution {
	var res Resolution
	for _, raw := range addressees {
		if m := t.resolveOne(raw); m != nil {
			res.Resolved = append(res.Resolved, m)
		} else {
			res.Unresolved = append(res.Unresolved, raw)
		}
	}
	return res
}

func (t *Team) resolveOne(raw string) *Member {
	key := Normalize(raw)
	if key == "" {
		return nil
	}
	for i := range t.Members {
		m := &t.Members[i]
		if Normalize(m.ID) == key || Normalize(m.Name) == key || Normalize(m.DisplayName) == key {
			return m
		}
	}
	return nil
}
