package tcpctl

import (
	"fmt"

	"github.com/User65k/baos/internal/blind"
)

// apartmentCodes maps the human-facing room/window codes from the
// original deployment's floor plan onto port letters.
var apartmentCodes = map[string]byte{
	"W2": 'h',
	"BR": 'g',
	"W1": 'f',
	"W4": 'e',
	"BL": 'd',
	"W3": 'c',
	"S":  'b',
	"K":  'a',
}

// resolveTarget expands a target token into the blinds it addresses:
// "A" for all of them, "B"/"W" for the bedroom/window groups used by
// the single-step shortcuts, an apartment code, or a literal port
// letter.
func resolveTarget(target string) ([]blind.Blind, error) {
	switch target {
	case "A":
		out := make([]blind.Blind, 0, 8)
		for c := byte('a'); c <= 'h'; c++ {
			out = append(out, blind.FromPort(c))
		}
		return out, nil
	case "B":
		return []blind.Blind{blind.FromPort('g'), blind.FromPort('d')}, nil
	case "W":
		return []blind.Blind{
			blind.FromPort('h'), blind.FromPort('f'), blind.FromPort('e'), blind.FromPort('c'),
		}, nil
	}
	if letter, ok := apartmentCodes[target]; ok {
		return []blind.Blind{blind.FromPort(letter)}, nil
	}
	if len(target) == 1 && target[0] >= 'a' && target[0] <= 'h' {
		return []blind.Blind{blind.FromPort(target[0])}, nil
	}
	return nil, fmt.Errorf("tcpctl: unresolvable target %q", target)
}
