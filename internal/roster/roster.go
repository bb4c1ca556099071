// Package roster owns the ordered list of people who take deploy slots and
// its persistence.
//
// Every operation except Store.Save is pure: it returns a new Roster and
// never writes through the input slice.
package roster

import "strings"

// Roster is the rotation order. Names are trimmed, non-empty and unique by
// exact match.
type Roster []string

// DefaultNames is used when nothing has been stored yet.
var DefaultNames = Roster{"Kelvis Santos", "Marco Nurmberg", "Endryus Henrique", "Lucas Salicano"}

func (r Roster) Clone() Roster {
	out := make(Roster, len(r))
	copy(out, r)
	return out
}

// Index returns the position of name (exact match after trimming), or -1.
func (r Roster) Index(name string) int {
	name = strings.TrimSpace(name)
	for i, n := range r {
		if n == name {
			return i
		}
	}
	return -1
}

func (r Roster) Contains(name string) bool { return r.Index(name) >= 0 }

// Normalize trims every name, drops blanks and keeps the first occurrence
// of duplicates.
func Normalize(names []string) Roster {
	out := make(Roster, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// ValidateName reports why name cannot be appended to current.
func ValidateName(current Roster, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrBlankName
	}
	if current.Contains(name) {
		return ErrDuplicateName
	}
	return nil
}

// AddName appends the trimmed name. Blank or duplicate names leave the
// roster unchanged (a copy is still returned).
func AddName(current Roster, name string) Roster {
	out := current.Clone()
	if ValidateName(current, name) != nil {
		return out
	}
	return append(out, strings.TrimSpace(name))
}

func RemoveName(current Roster, index int) (Roster, error) {
	if index < 0 || index >= len(current) {
		return current.Clone(), &IndexError{Index: index, Len: len(current)}
	}
	out := make(Roster, 0, len(current)-1)
	out = append(out, current[:index]...)
	return append(out, current[index+1:]...), nil
}

// EditName replaces the name at index. The new name may equal the one it
// replaces but not any other entry.
func EditName(current Roster, index int, name string) (Roster, error) {
	if index < 0 || index >= len(current) {
		return current.Clone(), &IndexError{Index: index, Len: len(current)}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return current.Clone(), ErrBlankName
	}
	if i := current.Index(name); i >= 0 && i != index {
		return current.Clone(), ErrDuplicateName
	}
	out := current.Clone()
	out[index] = name
	return out, nil
}

// MoveName moves the entry at from so that it ends up at position to.
func MoveName(current Roster, from, to int) (Roster, error) {
	n := len(current)
	if from < 0 || from >= n {
		return current.Clone(), &IndexError{Index: from, Len: n}
	}
	if to < 0 || to >= n {
		return current.Clone(), &IndexError{Index: to, Len: n}
	}
	out := current.Clone()
	if from == to {
		return out, nil
	}
	name := out[from]
	if from < to {
		copy(out[from:to], out[from+1:to+1])
	} else {
		copy(out[to+1:from+1], out[to:from])
	}
	out[to] = name
	return out, nil
}
