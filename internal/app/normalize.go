package app

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"donation-gateway/internal/core/domain"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// digitsOnly strips everything that is not an ASCII digit.
func digitsOnly(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeDocument returns the digits of a CPF typed as "529.982.247-25" or similar.
func NormalizeDocument(raw string) string { return digitsOnly(raw) }

// NormalizePhone returns the digits of a phone typed as "(11) 98765-4321".
func NormalizePhone(raw string) string { return digitsOnly(raw) }

// NormalizeCardNumber returns the digits of a card number typed with spaces or dashes.
func NormalizeCardNumber(raw string) string { return digitsOnly(raw) }

// ValidateDocument checks an 11-digit CPF: both check digits and the repeated-digit blacklist.
func ValidateDocument(digits string) bool {
	if len(digits) != 11 || digitsOnly(digits) != digits {
		return false
	}
	if strings.Count(digits, digits[:1]) == len(digits) {
		return false
	}
	for pass := 9; pass <= 10; pass++ {
		if checkDigit(digits[:pass]) != int(digits[pass]-'0') {
			return false
		}
	}
	return true
}

// checkDigit computes ((10 * Σ d[i]*w[i]) mod 11) mod 10 with weights len+1 down to 2.
func checkDigit(prefix string) int {
	sum := 0
	weight := len(prefix) + 1
	for i := 0; i < len(prefix); i++ {
		sum += int(prefix[i]-'0') * weight
		weight--
	}
	return ((10 * sum) % 11) % 10
}

// CompleteDocument appends both check digits to a 9-digit base. Used by test data generators.
func CompleteDocument(base string) string {
	first := checkDigit(base)
	withFirst := base + strconv.Itoa(first)
	return withFirst + strconv.Itoa(checkDigit(withFirst))
}

// FormatDocument renders 11 digits as 000.000.000-00.
func FormatDocument(digits string) string {
	if len(digits) != 11 {
		return digits
	}
	return fmt.Sprintf("%s.%s.%s-%s", digits[0:3], digits[3:6], digits[6:9], digits[9:11])
}

// FormatPhone renders a 10 or 11 digit number as (00) 0000-0000 or (00) 00000-0000.
func FormatPhone(digits string) string {
	switch len(digits) {
	case 10:
		return fmt.Sprintf("(%s) %s-%s", digits[0:2], digits[2:6], digits[6:])
	case 11:
		return fmt.Sprintf("(%s) %s-%s", digits[0:2], digits[2:7], digits[7:])
	}
	return digits
}

// ValidatePhone accepts Brazilian numbers with area code (landline or mobile).
func ValidatePhone(digits string) bool {
	return len(digits) == 10 || len(digits) == 11
}

// ValidateEmail applies the same loose check as the donation form.
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidateCardNumber only checks the length; the provider does the rest.
func ValidateCardNumber(digits string) bool {
	return len(digits) >= 13 && len(digits) <= 19 && digitsOnly(digits) == digits
}

// ValidateSecurityCode accepts 3 (most brands) or 4 (amex) digits.
func ValidateSecurityCode(raw string) bool {
	return (len(raw) == 3 || len(raw) == 4) && digitsOnly(raw) == raw
}

// ValidateExpiry reports whether a card expiring at month/year is still usable at now.
// The current month is still valid.
func ValidateExpiry(month, year int, now time.Time) bool {
	if month < 1 || month > 12 {
		return false
	}
	return year > now.Year() || (year == now.Year() && month >= int(now.Month()))
}

// ParseExpiry reads "MM/YY", "MM/YYYY" or "MMYY". Two-digit years are 20YY.
func ParseExpiry(raw string) (month, year int, err error) {
	raw = strings.TrimSpace(raw)
	var mm, yy string
	if i := strings.IndexFunc(raw, func(r rune) bool { return !unicode.IsDigit(r) }); i >= 0 {
		mm, yy = raw[:i], strings.TrimLeftFunc(raw[i:], func(r rune) bool { return !unicode.IsDigit(r) })
	} else if len(raw) == 4 || len(raw) == 6 {
		mm, yy = raw[:2], raw[2:]
	} else {
		return 0, 0, &domain.ValidationError{Field: "card_expiry", Reason: "expected MM/YY"}
	}

	month, err = strconv.Atoi(mm)
	if err != nil || len(mm) == 0 || len(mm) > 2 {
		return 0, 0, &domain.ValidationError{Field: "card_expiry", Reason: "invalid month"}
	}
	year, err = strconv.Atoi(yy)
	if err != nil || (len(yy) != 2 && len(yy) != 4) {
		return 0, 0, &domain.ValidationError{Field: "card_expiry", Reason: "invalid year"}
	}
	if len(yy) == 2 {
		year += 2000
	}
	return month, year, nil
}

var cardBrands = []struct {
	name    string
	pattern *regexp.Regexp
}{
	// elo and hipercard ranges overlap visa/discover prefixes, so they are checked first.
	{"elo", regexp.MustCompile(`^(401178|401179|431274|438935|451416|457393|457631|457632|504175|627780|636297|636368|636369)`)},
	{"hipercard", regexp.MustCompile(`^(606282|3841)`)},
	{"visa", regexp.MustCompile(`^4`)},
	{"mastercard", regexp.MustCompile(`^5[1-5]`)},
	{"amex", regexp.MustCompile(`^3[47]`)},
	{"diners", regexp.MustCompile(`^3(?:0[0-5]|[68][0-9])`)},
	{"discover", regexp.MustCompile(`^6(?:011|5|4[4-9]|22)`)},
	{"jcb", regexp.MustCompile(`^(?:2131|1800|35)`)},
}

// DetectCardBrand guesses the brand from the card prefix. Unknown brands return "".
func DetectCardBrand(digits string) string {
	if len(digits) < 4 {
		return ""
	}
	for _, b := range cardBrands {
		if b.pattern.MatchString(digits) {
			return b.name
		}
	}
	return ""
}
