package frame

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HexString renders b as dash separated hex pairs, e.g. aa-02-11-22-35-bb.
func HexString(b []byte) string {
	hexDigits := hex.EncodeToString(b)
	var builder strings.Builder
	for i, r := range hexDigits {
		if i > 0 && i%2 == 0 {
			builder.WriteString("-")
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

// ParseHex accepts contiguous hex or hex pairs separated by dashes, colons,
// spaces or commas. An optional 0x prefix is stripped.
func ParseHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer("-", "", ":", "", " ", "", ",", "", "\t", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("parse hex: %w", err)
	}
	return b, nil
}
