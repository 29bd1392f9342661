package actions

import (
	"strconv"
	"strings"

	"github.com/desertthunder/spotskill/internal/models"
)

var units = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
	"thirteen": 13, "fourteen": 14, "fifteen": 15, "sixteen": 16,
	"seventeen": 17, "eighteen": 18, "nineteen": 19,
}

var tens = map[string]int{
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

func isNumberWord(w string) bool {
	_, u := units[w]
	_, t := tens[w]
	return u || t || w == "hundred"
}

// ParseNumber converts a digit string or a run of English number words ("twenty five",
// "one hundred") to an int.
func ParseNumber(words ...string) (int, bool) {
	if len(words) == 1 {
		if n, err := strconv.Atoi(words[0]); err == nil {
			return n, true
		}
	}
	if len(words) == 0 {
		return 0, false
	}

	total, current := 0, 0
	for _, w := range words {
		w = strings.ToLower(w)
		switch {
		case w == "hundred":
			if current == 0 {
				current = 1
			}
			total += current * 100
			current = 0
		case isNumberWord(w):
			if v, ok := units[w]; ok {
				current += v
			} else {
				current += tens[w]
			}
		default:
			return 0, false
		}
	}
	return total + current, true
}

// ScanNumbers finds numbers in free text, digits or number words, with the tokens around them.
func ScanNumbers(text string) []models.NumberToken {
	tokens := Tokenize(text)
	var found []models.NumberToken

	for i := 0; i < len(tokens); {
		end := i
		if _, err := strconv.Atoi(tokens[i]); err == nil {
			end = i + 1
		} else {
			for end < len(tokens) && isNumberWord(tokens[end]) {
				end++
			}
		}
		if end == i {
			i++
			continue
		}

		n, ok := ParseNumber(tokens[i:end]...)
		if ok {
			nt := models.NumberToken{Value: n}
			if i > 0 {
				nt.Previous = tokens[i-1]
			}
			if end < len(tokens) {
				nt.Next = tokens[end]
			}
			found = append(found, nt)
		}
		i = end
	}
	return found
}
