package checkout

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Reason codes carried in validation errors. Clients branch on these, never
// on message text.
const (
	CodeRequired             = "required"
	CodeTooShort             = "too_short"
	CodeTooLong              = "too_long"
	CodeInvalidFormat        = "invalid_format"
	CodeInvalidPaymentMethod = "invalid_payment_method"
	CodeAmountOutOfRange     = "amount_out_of_range"
	CodeMinOrderAmount       = "min_order_amount"
	CodeCouponNotFound       = "coupon_not_found"
	CodeCouponInactive       = "coupon_inactive"
	CodeCouponExpired        = "coupon_expired"
	CodeCouponAlreadyUsed    = "coupon_already_redeemed"
)

// FieldError is a single machine-readable validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationErrors aggregates every rule violation found in a request.
// It is returned before any mutation happens.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(v))
	for i, fe := range v {
		msgs[i] = fe.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Request is the checkout input. UserID comes from the authentication
// boundary, never from the request body.
type Request struct {
	UserID         string
	IdempotencyKey string

	Email       string
	PhoneNumber string
	Country     string
	FirstName   string
	LastName    string
	Address     string
	ApartmentNo string
	PostalCode  string
	City        string

	PaymentMethod PaymentMethod
	Amount        decimal.Decimal
	CouponCode    string
}

// validate applies every field rule and returns the full list of violations.
func (r *Request) validate(minAmount, maxAmount decimal.Decimal) ValidationErrors {
	var errs ValidationErrors

	add := func(field, code, message string) {
		errs = append(errs, FieldError{Field: field, Code: code, Message: message})
	}

	if !isEmail(r.Email) {
		add("email", CodeInvalidFormat, "valid email address is required")
	}
	if len(strings.TrimSpace(r.PhoneNumber)) < 10 {
		add("phoneNumber", CodeTooShort, "valid phone number is required (minimum 10 digits)")
	}
	if len(strings.TrimSpace(r.Country)) < 2 {
		add("country", CodeTooShort, "country is required (minimum 2 characters)")
	}
	if len(strings.TrimSpace(r.FirstName)) < 2 {
		add("firstName", CodeTooShort, "first name is required (minimum 2 characters)")
	}
	if len(strings.TrimSpace(r.LastName)) < 2 {
		add("lastName", CodeTooShort, "last name is required (minimum 2 characters)")
	}
	if len(strings.TrimSpace(r.Address)) < 5 {
		add("address", CodeTooShort, "valid address is required (minimum 5 characters)")
	}
	if len(strings.TrimSpace(r.City)) < 2 {
		add("city", CodeTooShort, "city is required (minimum 2 characters)")
	}
	if !r.PaymentMethod.Valid() {
		add("paymentMethod", CodeInvalidPaymentMethod, "payment method must be COD, UPI, or CreditCard")
	}
	if r.Amount.LessThan(minAmount) || r.Amount.GreaterThan(maxAmount) {
		add("amount", CodeAmountOutOfRange,
			"order amount must be between "+minAmount.StringFixed(2)+" and "+maxAmount.StringFixed(2))
	}

	return errs
}

// isEmail mirrors the storefront's permissive check: one @, non-empty local
// part, and a dot in the domain.
func isEmail(s string) bool {
	at := strings.IndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return false
	}
	if strings.IndexByte(s[at+1:], '@') >= 0 {
		return false
	}
	domain := s[at+1:]
	dot := strings.IndexByte(domain, '.')
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}
	return !strings.ContainsAny(s, " \t")
}
