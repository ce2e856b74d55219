package iso8583

import (
	"fmt"
	"regexp"
	"sync"
)

// ValidationRule defines the interface for a single validation rule.
type ValidationRule interface {
	Validate(field Field) error
	Name() string // Returns the name of the rule (e.g., "length")
}

// CompiledValidator holds a pre-compiled set of validation rules
// derived from a PackagerConfig. It is safe for concurrent use.
type CompiledValidator struct {
	mandatoryFields map[int]bool             // Fast lookup for mandatory fields
	fieldRules      map[int][]ValidationRule // Rules specific to a field number
	globalRules     []ValidationRule         // Rules applied to all fields
	mu              sync.RWMutex
}

// NewCompiledValidator creates a new, empty validator.
func NewCompiledValidator() *CompiledValidator {
	return &CompiledValidator{
		mandatoryFields: make(map[int]bool),
		fieldRules:      make(map[int][]ValidationRule),
	}
}

// AddGlobalRule adds a rule that will be applied to all fields.
func (cv *CompiledValidator) AddGlobalRule(rule ValidationRule) {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	cv.globalRules = append(cv.globalRules, rule)
}

// AddFieldRule adds a rule for a single top-level field.
func (cv *CompiledValidator) AddFieldRule(fieldNum int, rule ValidationRule) {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	cv.fieldRules[fieldNum] = append(cv.fieldRules[fieldNum], rule)
}

// ValidateMessage validates the top-level fields of a Message. Strict
// validation also requires every mandatory field to be present. Composite
// fields built from subfields are checked for presence only.
func (cv *CompiledValidator) ValidateMessage(msg *Message, level ValidationLevel) error {
	if level == ValidationNone {
		return nil
	}

	cv.mu.RLock()
	defer cv.mu.RUnlock()

	if level == ValidationStrict {
		for fieldNum := 2; fieldNum <= MaxFieldNumber; fieldNum++ {
			if cv.mandatoryFields[fieldNum] && !msg.HasField(fieldNum) {
				return &ValidationError{
					Field:   fieldNum,
					Rule:    "mandatory",
					Message: "mandatory field missing",
				}
			}
		}
	}

	for _, fieldNum := range msg.GetPresentFields() {
		field, ok := msg.Get(fmt.Sprint(fieldNum))
		if !ok {
			continue
		}
		if err := cv.validateField(fieldNum, field); err != nil {
			return err
		}
	}
	return nil
}

// ValidateField validates a single field against all applicable rules.
func (cv *CompiledValidator) ValidateField(fieldNum int, field Field) error {
	cv.mu.RLock()
	defer cv.mu.RUnlock()
	return cv.validateField(fieldNum, field)
}

func (cv *CompiledValidator) validateField(fieldNum int, field Field) error {
	rules := append(cv.fieldRules[fieldNum][:len(cv.fieldRules[fieldNum]):len(cv.fieldRules[fieldNum])], cv.globalRules...)
	for _, rule := range rules {
		if err := rule.Validate(field); err != nil {
			return &ValidationError{
				Field:   fieldNum,
				Rule:    rule.Name(),
				Message: err.Error(),
			}
		}
	}
	return nil
}

// --- Validation Rule Implementations ---

// LengthRule validates the field's length.
type LengthRule struct {
	MinLength   int
	MaxLength   int
	ExactLength int
	AllowEmpty  bool
}

// Name returns the rule name.
func (r *LengthRule) Name() string {
	return "length"
}

// Validate checks the field's length constraints.
func (r *LengthRule) Validate(field Field) error {
	length := field.Length()

	if length == 0 && r.AllowEmpty {
		return nil
	}

	if r.ExactLength > 0 && length != r.ExactLength {
		return fmt.Errorf("expected length %d, got %d", r.ExactLength, length)
	}

	if r.MinLength > 0 && length < r.MinLength {
		return fmt.Errorf("length %d below minimum %d", length, r.MinLength)
	}

	if r.MaxLength > 0 && length > r.MaxLength {
		return fmt.Errorf("length %d exceeds maximum %d", length, r.MaxLength)
	}

	return nil
}

// NumericRule validates that the field contains only numeric digits.
type NumericRule struct {
	AllowEmpty bool
}

// Name returns the rule name.
func (r *NumericRule) Name() string {
	return "numeric"
}

// Validate checks for non-numeric characters.
func (r *NumericRule) Validate(field Field) error {
	if field.IsBinary() || (field.Length() == 0 && r.AllowEmpty) {
		return nil
	}
	return field.validateNumeric()
}

// AlphanumericRule validates character content.
type AlphanumericRule struct {
	AllowEmpty        bool
	AllowSpecialChars bool // If true, allows any printable ASCII. If false, only [0-9a-zA-Z ].
}

// Name returns the rule name.
func (r *AlphanumericRule) Name() string {
	return "alphanumeric"
}

// Validate checks for invalid characters.
func (r *AlphanumericRule) Validate(field Field) error {
	if field.IsBinary() || (field.Length() == 0 && r.AllowEmpty) {
		return nil
	}
	if r.AllowSpecialChars {
		return field.validatePrintable()
	}
	for i, b := range field.Bytes() {
		if !((b >= '0' && b <= '9') || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b == ' ') {
			return fmt.Errorf("special character not allowed at position %d", i)
		}
	}
	return nil
}

// RegexRule validates the field against a regular expression.
type RegexRule struct {
	AllowEmpty  bool
	Description string // User-friendly error message
	regex       *regexp.Regexp
}

// NewRegexRule compiles pattern into a rule.
func NewRegexRule(pattern, description string) (*RegexRule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &RegexRule{Description: description, regex: re}, nil
}

// Name returns the rule name.
func (r *RegexRule) Name() string {
	return "regex"
}

// Validate checks the field against the compiled regex.
func (r *RegexRule) Validate(field Field) error {
	data := field.String()
	if len(data) == 0 && r.AllowEmpty {
		return nil
	}

	if !r.regex.MatchString(data) {
		if r.Description != "" {
			return fmt.Errorf("%s", r.Description)
		}
		return fmt.Errorf("does not match pattern %s", r.regex)
	}
	return nil
}

// RangeRule validates that a numeric field's value is within a given range.
type RangeRule struct {
	Min        int64
	Max        int64
	AllowEmpty bool
}

// Name returns the rule name.
func (r *RangeRule) Name() string {
	return "range"
}

// Validate parses the field as an int64 and checks the range.
func (r *RangeRule) Validate(field Field) error {
	if field.Length() == 0 && r.AllowEmpty {
		return nil
	}

	val, err := field.Int64()
	if err != nil {
		return fmt.Errorf("cannot parse as integer: %v", err)
	}
	if val < r.Min {
		return fmt.Errorf("value %d below minimum %d", val, r.Min)
	}
	if val > r.Max {
		return fmt.Errorf("value %d exceeds maximum %d", val, r.Max)
	}
	return nil
}

// CustomRule allows defining an arbitrary validation function.
type CustomRule struct {
	ValidateFunc func(Field) error
	RuleName     string
}

// Name returns the custom rule name.
func (r *CustomRule) Name() string {
	return r.RuleName
}

// Validate executes the custom validation function.
func (r *CustomRule) Validate(field Field) error {
	return r.ValidateFunc(field)
}

// compileValidator creates a new CompiledValidator based on the rules
// defined in a PackagerConfig.
func compileValidator(config *PackagerConfig) *CompiledValidator {
	validator := NewCompiledValidator()

	for fieldNum, fieldConfig := range config.Fields {
		if fieldConfig.Mandatory {
			validator.mandatoryFields[fieldNum] = true
		}

		var rules []ValidationRule
		if fieldConfig.MinLength > 0 || fieldConfig.MaxLength > 0 {
			rules = append(rules, &LengthRule{
				MinLength: fieldConfig.MinLength,
				MaxLength: fieldConfig.MaxLength,
			})
		}

		switch fieldConfig.Type {
		case FieldTypeN:
			rules = append(rules, &NumericRule{})
		case FieldTypeANS:
			rules = append(rules, &AlphanumericRule{AllowSpecialChars: true})
		case FieldTypeAN:
			rules = append(rules, &AlphanumericRule{})
		}

		if len(rules) > 0 {
			validator.fieldRules[fieldNum] = rules
		}
	}

	return validator
}
