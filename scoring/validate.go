package scoring

import "fmt"

const (
	FieldIncome  = "income"
	FieldAssets  = "assets"
	FieldHistory = "history"
)

const (
	// MaxIncome is the upper bound for income, in thousands of currency units
	MaxIncome = int64(1_000_000)

	// MaxAssets is the upper bound for assets, in thousands of currency units
	MaxAssets = int64(10_000_000)

	// MaxHistory is the upper bound for the credit history rating
	MaxHistory = int64(100)
)

// RangeError is returned when a submitted attribute is missing or outside its bounds
type RangeError struct {
	Field   string
	Value   int64
	Min     int64
	Max     int64
	Missing bool

	// Malformed is set when an already-encrypted attribute could not be decoded
	Malformed bool
}

func (e *RangeError) Error() string {
	if e.Missing {
		return fmt.Sprintf("%s is required", e.Field)
	}
	if e.Malformed {
		return fmt.Sprintf("%s ciphertext is malformed", e.Field)
	}
	return fmt.Sprintf("%s must be between %d and %d; got %d", e.Field, e.Min, e.Max, e.Value)
}

// Bounds returns the inclusive bounds for the named field
func Bounds(field string) (min, max int64, ok bool) {
	switch field {
	case FieldIncome:
		return 0, MaxIncome, true
	case FieldAssets:
		return 0, MaxAssets, true
	case FieldHistory:
		return 0, MaxHistory, true
	}
	return 0, 0, false
}

// Missing returns the range error reported for an absent field
func Missing(field string) *RangeError {
	min, max, _ := Bounds(field)
	return &RangeError{
		Field:   field,
		Min:     min,
		Max:     max,
		Missing: true,
	}
}

// Malformed returns the range error reported for an undecodable ciphertext
func Malformed(field string) *RangeError {
	min, max, _ := Bounds(field)
	return &RangeError{
		Field:     field,
		Min:       min,
		Max:       max,
		Malformed: true,
	}
}

// ValidateField checks a single attribute against its bounds
func ValidateField(field string, val int64) error {
	min, max, ok := Bounds(field)
	if !ok {
		return fmt.Errorf("unknown credit attribute: %s", field)
	}
	if val < min || val > max {
		return &RangeError{
			Field: field,
			Value: val,
			Min:   min,
			Max:   max,
		}
	}
	return nil
}

// Validate checks all three attributes; the first violation is returned, in
// income, assets, history order
func Validate(income, assets, history int64) error {
	if err := ValidateField(FieldIncome, income); err != nil {
		return err
	}
	if err := ValidateField(FieldAssets, assets); err != nil {
		return err
	}
	return ValidateField(FieldHistory, history)
}

// ValidatePresent is Validate for optional inputs; a nil attribute is reported
// as missing
func ValidatePresent(income, assets, history *int64) error {
	fields := []struct {
		name string
		val  *int64
	}{
		{FieldIncome, income},
		{FieldAssets, assets},
		{FieldHistory, history},
	}

	for _, f := range fields {
		if f.val == nil {
			return Missing(f.name)
		}
		if err := ValidateField(f.name, *f.val); err != nil {
			return err
		}
	}
	return nil
}
