package project

import (
	"fmt"
	"strings"
)

// Pattern is a row of beats, written as a string where 'x' is a beat that is
// on and '.' one that is off. Spaces and '|' may be used to group beats.
type Pattern []bool

func ParsePattern(s string) (Pattern, error) {
	p := make(Pattern, 0, len(s))
	for i, r := range s {
		switch r {
		case 'x', 'X':
			p = append(p, true)
		case '.', '-':
			p = append(p, false)
		case ' ', '|':
		default:
			return nil, fmt.Errorf("%w: unexpected %q at %d in pattern %q", ErrInvalidProject, r, i, s)
		}
	}
	return p, nil
}

func (p Pattern) String() string {
	var b strings.Builder
	for _, on := range p {
		if on {
			b.WriteByte('x')
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

func (p Pattern) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Pattern) UnmarshalText(b []byte) error {
	v, err := ParsePattern(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
