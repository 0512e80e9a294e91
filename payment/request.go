package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

var ErrValidation = errors.New("validation failed")

// ValidationError is a user-facing rejection of a checkout request.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

type CheckoutRequest struct {
	ProductName     string `json:"product_name" validate:"required,max=255"`
	Price           any    `json:"price" validate:"required"`
	CustomerContact string `json:"customer_contact" validate:"omitempty,max=64"`
	CustomerEmail   string `json:"customer_email" validate:"omitempty,email,max=255"`
	Method          string `json:"method" validate:"omitempty,max=20"`
	RefId           string `json:"ref_id" validate:"omitempty,max=191"`
	NotifyUrl       string `json:"notify_url" validate:"omitempty,url,max=1024"`
}

var requestValidator = validator.New()

func (r *CheckoutRequest) validate() error {
	if err := requestValidator.Struct(r); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return invalid("invalid request")
		}
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag()
		}
		return &ValidationError{Message: "invalid request", Fields: fields}
	}
	return nil
}

var (
	priceTextPattern = regexp.MustCompile(`^\d[\d.,]*$`)
	// A one or two digit group after the last separator is a fraction;
	// thousands groups always have three digits.
	priceFractionPattern = regexp.MustCompile(`[.,](\d{1,2})$`)
	priceSeparators      = strings.NewReplacer(".", "", ",", "")
)

// parsePrice accepts a JSON number or an id-ID formatted string such as
// "100000", "Rp 100.000" or "150.000,00". Only whole rupiah are accepted.
func parsePrice(v any) (int64, error) {
	var d decimal.Decimal
	switch p := v.(type) {
	case float64:
		d = decimal.NewFromFloat(p)
	case json.Number:
		parsed, err := decimal.NewFromString(p.String())
		if err != nil {
			return 0, invalid("price is not a number")
		}
		d = parsed
	case string:
		s := strings.TrimSpace(p)
		if len(s) >= 2 && strings.EqualFold(s[:2], "rp") {
			s = strings.TrimLeft(s[2:], " .")
		}
		if !priceTextPattern.MatchString(s) {
			return 0, invalid("price is not a number")
		}
		if m := priceFractionPattern.FindStringSubmatch(s); m != nil {
			if strings.Trim(m[1], "0") != "" {
				return 0, invalid("price must be a whole rupiah amount")
			}
			s = s[:len(s)-len(m[0])]
		}
		parsed, err := decimal.NewFromString(priceSeparators.Replace(s))
		if err != nil {
			return 0, invalid("price is not a number")
		}
		d = parsed
	default:
		return 0, invalid("price is not a number")
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, invalid("price must be a whole rupiah amount")
	}
	if !d.IsPositive() {
		return 0, invalid("price must be positive")
	}
	return d.IntPart(), nil
}

// normalizeContact formats Indonesian phone numbers as E.164 and leaves
// anything else (usernames, foreign formats it cannot parse) as given.
func normalizeContact(contact string) string {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return ""
	}
	num, err := libphonenumber.Parse(contact, "ID")
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return contact
	}
	return libphonenumber.Format(num, libphonenumber.E164)
}
