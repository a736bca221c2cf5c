package buffer

import (
	"encoding/binary"
	"unicode/utf16"

	"golang.org/x/text/encoding/unicode"

	"github.com/wippyai/ffi-bridge/errors"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodeString converts s to UTF-16 code units. Invalid UTF-8 becomes
// U+FFFD.
func EncodeString(s string) ([]uint16, error) {
	raw, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEncode, errors.KindInvalidData, err, "encode UTF-16")
	}
	return bytesToUnits(raw), nil
}

// DecodeString converts code units to a string, replacing unpaired
// surrogates with U+FFFD.
func DecodeString(units []uint16) string {
	out, err := utf16le.NewDecoder().Bytes(unitsToBytes(units))
	if err != nil {
		return string(utf16.Decode(units))
	}
	return string(out)
}

// DecodeStrict converts code units to a string and fails on the first
// unpaired surrogate.
func DecodeStrict(units []uint16) (string, error) {
	for i := 0; i < len(units); i++ {
		u := rune(units[i])
		if !utf16.IsSurrogate(u) {
			continue
		}
		if u < 0xdc00 && i+1 < len(units) && units[i+1] >= 0xdc00 && units[i+1] <= 0xdfff {
			i++
			continue
		}
		return "", errors.InvalidUTF16(errors.PhaseDecode, units, i)
	}
	return DecodeString(units), nil
}

func unitsToBytes(units []uint16) []byte {
	raw := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(raw[2*i:], u)
	}
	return raw
}

func bytesToUnits(raw []byte) []uint16 {
	units := make([]uint16, len(raw)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(raw[2*i:])
	}
	return units
}
