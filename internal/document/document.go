// Package document validates Brazilian taxpayer identifiers: CPF for people
// (11 digits) and CNPJ for companies (14 digits).
package document

import "strings"

var (
	cnpjFirstWeights  = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjSecondWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// Digits drops every non-digit character.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Valid accepts a CPF or CNPJ in any punctuation, dispatching on digit count.
func Valid(raw string) bool {
	digits := Digits(raw)
	switch len(digits) {
	case 11:
		return ValidCPF(digits)
	case 14:
		return ValidCNPJ(digits)
	default:
		return false
	}
}

func ValidCPF(raw string) bool {
	cpf := Digits(raw)
	if len(cpf) != 11 || repeated(cpf) {
		return false
	}
	d := toInts(cpf)

	sum := 0
	for i := 0; i < 9; i++ {
		sum += d[i] * (10 - i)
	}
	first := sum * 10 % 11
	if first == 10 {
		first = 0
	}

	sum = 0
	for i := 0; i < 10; i++ {
		sum += d[i] * (11 - i)
	}
	second := sum * 10 % 11
	if second == 10 {
		second = 0
	}

	return d[9] == first && d[10] == second
}

func ValidCNPJ(raw string) bool {
	cnpj := Digits(raw)
	if len(cnpj) != 14 || repeated(cnpj) {
		return false
	}
	d := toInts(cnpj)
	return d[12] == cnpjCheckDigit(d, cnpjFirstWeights) && d[13] == cnpjCheckDigit(d, cnpjSecondWeights)
}

func cnpjCheckDigit(digits []int, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += digits[i] * w
	}
	check := 11 - sum%11
	if check >= 10 {
		return 0
	}
	return check
}

func repeated(digits string) bool {
	return strings.Count(digits, digits[:1]) == len(digits)
}

func toInts(digits string) []int {
	out := make([]int, len(digits))
	for i := range digits {
		out[i] = int(digits[i] - '0')
	}
	return out
}
