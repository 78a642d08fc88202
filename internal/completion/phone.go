package completion

import "strings"

// digits strips everything but 0-9.
func digits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// formatBR renders Brazilian numbers: (XX) XXXXX-XXXX for 11 digits,
// (XX) XXXX-XXXX for 10. Anything else comes back unchanged.
func formatBR(phone string) string {
	d := digits(phone)
	switch len(d) {
	case 11:
		return "(" + d[0:2] + ") " + d[2:7] + "-" + d[7:11]
	case 10:
		return "(" + d[0:2] + ") " + d[2:6] + "-" + d[6:10]
	default:
		return phone
	}
}

// formatPT renders Portuguese numbers as +351 XXX XXX XXX, accepting
// both bare 9-digit numbers and ones already carrying the 351 prefix.
func formatPT(phone string) string {
	d := digits(phone)
	if len(d) == 12 && strings.HasPrefix(d, "351") {
		d = d[3:]
	}
	if len(d) != 9 {
		return phone
	}
	return "+351 " + d[0:3] + " " + d[3:6] + " " + d[6:9]
}

// phoneCandidates lists the lookup keys for a raw phone, in match
// priority order. Stored client phones may be raw digits or one of the
// display formats, so all spellings are tried.
func phoneCandidates(phone string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	add(strings.TrimSpace(phone))
	add(digits(phone))
	add(formatBR(phone))
	add(formatPT(phone))
	return out
}
