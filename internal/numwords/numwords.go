// Package numwords spells integers out as French words.
//
// The supported domain is [0, MaxNumber]. Irregular forms (zéro, "et un",
// the vigesimal 70s and 90s, quatre-vingts, plural cents, bare mille) are
// explicit rule branches rather than something derived from a general
// pattern.
package numwords

import (
	"errors"
	"fmt"
)

// MaxNumber is the largest number ToWords accepts. It is also the bound the
// HTTP layer validates against.
const MaxNumber = 10000

// ErrOutOfRange is returned for numbers outside [0, MaxNumber].
var ErrOutOfRange = errors.New("number out of range")

const (
	zero     = "zéro"
	hundred  = "cent"
	thousand = "mille"

	// quatre-vingts takes the plural s only when nothing follows it.
	eighty       = "quatre-vingt"
	eightyPlural = "quatre-vingts"
)

var (
	units = [10]string{"", "un", "deux", "trois", "quatre", "cinq", "six", "sept", "huit", "neuf"}
	teens = [10]string{"dix", "onze", "douze", "treize", "quatorze", "quinze", "seize", "dix-sept", "dix-huit", "dix-neuf"}

	// Decades 70 and 90 have no word of their own: they are spelled as
	// sixty or eighty followed by a teen.
	decades = [10]string{"", "", "vingt", "trente", "quarante", "cinquante", "soixante", "", eighty, ""}
)

// ToWords returns the French words for n.
func ToWords(n int) (string, error) {
	if !InRange(n) {
		return "", fmt.Errorf("%w: %d is outside [0, %d]", ErrOutOfRange, n, MaxNumber)
	}
	if n == 0 {
		return zero, nil
	}
	return spell(n), nil
}

// MustToWords is like ToWords but panics when n is out of range.
func MustToWords(n int) string {
	w, err := ToWords(n)
	if err != nil {
		panic(err)
	}
	return w
}

// InRange reports whether n is inside the supported domain.
func InRange(n int) bool {
	return n >= 0 && n <= MaxNumber
}

// spell handles 1 <= n <= MaxNumber. Zero is never spelled as part of a
// larger number, so it is handled by the caller.
func spell(n int) string {
	switch {
	case n < 10:
		return units[n]
	case n < 20:
		return teens[n-10]
	case n < 100:
		return spellTens(n)
	case n < 1000:
		return spellHundreds(n)
	default:
		return spellThousands(n)
	}
}

func spellTens(n int) string {
	tens, unit := n/10, n%10

	switch {
	case n < 70:
		switch unit {
		case 0:
			return decades[tens]
		case 1:
			return decades[tens] + " et un"
		default:
			return decades[tens] + "-" + units[unit]
		}
	case n < 80:
		return decades[6] + "-" + teens[n-70]
	case n == 80:
		return eightyPlural
	case n < 90:
		return eighty + "-" + units[unit]
	default:
		return eighty + "-" + teens[n-90]
	}
}

func spellHundreds(n int) string {
	count, rest := n/100, n%100

	if count == 1 {
		if rest == 0 {
			return hundred
		}
		return hundred + " " + spell(rest)
	}
	if rest == 0 {
		return units[count] + " " + hundred + "s"
	}
	return units[count] + " " + hundred + " " + spell(rest)
}

func spellThousands(n int) string {
	count, rest := n/1000, n%1000

	// mille is invariable and never takes "un" in front of it.
	var head string
	if count == 1 {
		head = thousand
	} else {
		head = spell(count) + " " + thousand
	}
	if rest == 0 {
		return head
	}
	return head + " " + spell(rest)
}
