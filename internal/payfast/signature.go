package payfast

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
)

// Mode selects the field ordering used to canonicalize a field set
// before hashing. The gateway mandates different orderings for the two
// directions and mixing them up silently produces mismatched signatures.
type Mode int

const (
	// FixedOrder is the outbound checkout ordering: the hardcoded field
	// sequence from the gateway's form documentation.
	FixedOrder Mode = iota
	// Lexicographic is the inbound notification ordering: whatever field
	// names were actually received, sorted ascending, case-sensitively.
	Lexicographic
)

// checkoutFieldOrder is the exact signing sequence for checkout requests.
// The gateway documents this order; it is not alphabetical and must not
// be reordered.
var checkoutFieldOrder = []string{
	"merchant_id",
	"merchant_key",
	"return_url",
	"cancel_url",
	"notify_url",
	"name_first",
	"name_last",
	"email_address",
	"cell_number",
	"m_payment_id",
	"amount",
	"item_name",
	"item_description",
	"email_confirmation",
	"confirmation_address",
	"payment_method",
	"custom_int1",
	"custom_int2",
	"custom_int3",
	"custom_int4",
	"custom_int5",
	"custom_str1",
	"custom_str2",
	"custom_str3",
	"custom_str4",
	"custom_str5",
}

// Sign canonicalizes the field set in the given mode and returns the
// gateway signature: 32 lowercase hex characters of the MD5 digest the
// gateway contract mandates. Fields whose trimmed value is empty are
// omitted entirely; their absence, not an empty value, is what gets
// signed. A non-empty passphrase is appended last as its own pair.
//
// Sign is pure: no I/O, no logging, safe for concurrent use.
func Sign(fields map[string]string, mode Mode, passphrase string) string {
	var names []string
	switch mode {
	case Lexicographic:
		names = make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
	default:
		names = checkoutFieldOrder
	}

	pairs := make([]string, 0, len(fields))
	for _, name := range names {
		value := strings.TrimSpace(fields[name])
		if value == "" {
			continue
		}
		pairs = append(pairs, name+"="+Encode(value))
	}

	param := strings.Join(pairs, "&")
	if pp := strings.TrimSpace(passphrase); pp != "" {
		param += "&passphrase=" + Encode(pp)
	}

	sum := md5.Sum([]byte(param))
	return hex.EncodeToString(sum[:])
}
