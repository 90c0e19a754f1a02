package enums

import "slices"

// PaymentMethod is how the buyer settles: card at delivery or trade credit.
type PaymentMethod string

const (
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodCredit30 PaymentMethod = "credit_30"
	PaymentMethodCredit60 PaymentMethod = "credit_60"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCard,
	PaymentMethodCredit30,
	PaymentMethodCredit60,
}

func (p PaymentMethod) String() string {
	return string(p)
}

func (p PaymentMethod) IsValid() bool {
	return slices.Contains(validPaymentMethods, p)
}

// InitialPaymentStatus is the payment status recorded when an order is placed.
func (p PaymentMethod) InitialPaymentStatus() PaymentStatus {
	switch p {
	case PaymentMethodCredit30:
		return PaymentStatusCredit30
	case PaymentMethodCredit60:
		return PaymentStatusCredit60
	default:
		return PaymentStatusPending
	}
}

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse(value, validPaymentMethods, "payment method")
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusCredit30 PaymentStatus = "credit_30"
	PaymentStatusCredit60 PaymentStatus = "credit_60"
)

func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusCredit30, PaymentStatusCredit60:
		return true
	default:
		return false
	}
}
