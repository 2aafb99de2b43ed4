package graph

import (
	"fmt"
	"math/bits"
)

// ID is an unsigned 128-bit node identifier.
//
// The zero value is a valid ID (the first one a fresh store allocates).
// IDs are comparable and usable as map keys. The text encoding is plain
// decimal, which keeps JSON snapshots and query literals in the same
// format the parser accepts.
type ID struct {
	Hi uint64
	Lo uint64
}

// MaxID is the largest representable node identifier.
var MaxID = ID{Hi: ^uint64(0), Lo: ^uint64(0)}

// IDFromUint64 widens v into an ID.
func IDFromUint64(v uint64) ID {
	return ID{Lo: v}
}

// IsZero reports whether id is the zero identifier.
func (id ID) IsZero() bool {
	return id.Hi == 0 && id.Lo == 0
}

// Less reports whether id orders before other.
func (id ID) Less(other ID) bool {
	if id.Hi != other.Hi {
		return id.Hi < other.Hi
	}
	return id.Lo < other.Lo
}

// Inc returns id+1. ok is false when id is already MaxID.
func (id ID) Inc() (next ID, ok bool) {
	lo, carry := bits.Add64(id.Lo, 1, 0)
	hi, carry := bits.Add64(id.Hi, 0, carry)
	if carry != 0 {
		return ID{}, false
	}
	return ID{Hi: hi, Lo: lo}, true
}

// mul10 returns id*10 and reports overflow.
func (id ID) mul10() (ID, bool) {
	hiCarry, hi := bits.Mul64(id.Hi, 10)
	if hiCarry != 0 {
		return ID{}, false
	}
	loCarry, lo := bits.Mul64(id.Lo, 10)
	hi, carry := bits.Add64(hi, loCarry, 0)
	if carry != 0 {
		return ID{}, false
	}
	return ID{Hi: hi, Lo: lo}, true
}

// addSmall returns id+v and reports overflow.
func (id ID) addSmall(v uint64) (ID, bool) {
	lo, carry := bits.Add64(id.Lo, v, 0)
	hi, carry := bits.Add64(id.Hi, 0, carry)
	if carry != 0 {
		return ID{}, false
	}
	return ID{Hi: hi, Lo: lo}, true
}

// divmod10 returns id/10 and id%10.
func (id ID) divmod10() (ID, uint64) {
	qHi := id.Hi / 10
	rem := id.Hi % 10
	qLo, rem := bits.Div64(rem, id.Lo, 10)
	return ID{Hi: qHi, Lo: qLo}, rem
}

// String renders id as a decimal integer.
func (id ID) String() string {
	if id.Hi == 0 {
		return fmt.Sprintf("%d", id.Lo)
	}
	// Peel off decimal digits from the low end. A 128-bit value has at
	// most 39 of them.
	var buf [40]byte
	pos := len(buf)
	for !id.IsZero() {
		var rem uint64
		id, rem = id.divmod10()
		pos--
		buf[pos] = byte('0' + rem)
	}
	return string(buf[pos:])
}

// ParseID parses a decimal string into an ID. The empty string, any
// non-digit character, and values above 2^128-1 are rejected.
func ParseID(s string) (ID, error) {
	if s == "" {
		return ID{}, fmt.Errorf("graph: empty node id")
	}
	var id ID
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return ID{}, fmt.Errorf("graph: invalid node id %q", s)
		}
		next, ok := id.mul10()
		if !ok {
			return ID{}, fmt.Errorf("graph: node id %q overflows 128 bits", s)
		}
		next, ok = next.addSmall(uint64(c - '0'))
		if !ok {
			return ID{}, fmt.Errorf("graph: node id %q overflows 128 bits", s)
		}
		id = next
	}
	return id, nil
}

// MarshalText implements encoding.TextMarshaler so IDs serialize as
// decimal strings in JSON snapshots.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
