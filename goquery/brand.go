package goquery

import "strings"

// knownBrands is checked in order. Two-letter brands come last so they only
// match when no longer brand does.
var knownBrands = []string{
	"Whirlpool", "Samsung", "Frigidaire", "Kenmore", "Maytag",
	"KitchenAid", "Bosch", "Amana", "Admiral", "Electrolux", "Hotpoint",
	"Jenn-Air", "Magic Chef", "Midea", "Haier", "Sub-Zero", "Viking",
	"Thermador", "GE", "LG",
}

// ExtractBrand finds a known brand in a model title such as
// "00740570 Bosch Refrigerator". Returns "" when none matches.
func ExtractBrand(name string) string {
	words := strings.Fields(name)
	for _, brand := range knownBrands {
		if strings.Contains(brand, " ") {
			if containsWords(words, strings.Fields(brand)) {
				return brand
			}
			continue
		}
		for _, w := range words {
			if len(brand) <= 2 {
				if strings.ToUpper(w) == brand {
					return brand
				}
			} else if strings.EqualFold(w, brand) {
				return brand
			}
		}
	}
	return ""
}

// containsWords reports whether seq occurs as consecutive words.
func containsWords(words, seq []string) bool {
	for i := 0; i+len(seq) <= len(words); i++ {
		match := true
		for j, s := range seq {
			if !strings.EqualFold(words[i+j], s) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
