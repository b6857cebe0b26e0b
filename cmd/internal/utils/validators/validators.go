package validators

import (
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
)

func HasUpper(fl validator.FieldLevel) bool {
	return containsRune(fl.Field().String(), unicode.IsUpper)
}

func HasLower(fl validator.FieldLevel) bool {
	return containsRune(fl.Field().String(), unicode.IsLower)
}

func HasDigit(fl validator.FieldLevel) bool {
	return containsRune(fl.Field().String(), unicode.IsDigit)
}

func HasSpecial(fl validator.FieldLevel) bool {
	return containsRune(fl.Field().String(), func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}

func NoWhiteSpaces(fl validator.FieldLevel) bool {
	return !containsRune(fl.Field().String(), unicode.IsSpace)
}

// IsDate accepts a calendar day written as YYYY-MM-DD.
func IsDate(fl validator.FieldLevel) bool {
	_, err := time.Parse("2006-01-02", fl.Field().String())
	return err == nil
}

// IsMonth accepts YYYY-MM.
func IsMonth(fl validator.FieldLevel) bool {
	_, err := time.Parse("2006-01", fl.Field().String())
	return err == nil
}

// SlotSet is the part of the configured slot set a validator needs.
type SlotSet interface {
	Valid(label string) bool
}

// SlotLabel builds the slotlabel rule over the configured slots.
func SlotLabel(slots SlotSet) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return slots.Valid(fl.Field().String())
	}
}

// Register installs every custom tag on validate.
func Register(validate *validator.Validate, slots SlotSet) error {
	rules := map[string]validator.Func{
		"hasupper":   HasUpper,
		"haslower":   HasLower,
		"hasdigit":   HasDigit,
		"hasspecial": HasSpecial,
		"nospaces":   NoWhiteSpaces,
		"isodate":    IsDate,
		"isomonth":   IsMonth,
		"slotlabel":  SlotLabel(slots),
	}
	for tag, fn := range rules {
		if err := validate.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

func containsRune(s string, pred func(rune) bool) bool {
	for _, r := range s {
		if pred(r) {
			return true
		}
	}
	return false
}
