package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/config"
)

type MethodType string

const (
	MethodTypeBalance        MethodType = "balance"
	MethodTypeEWallet        MethodType = "ewallet"
	MethodTypeVirtualAccount MethodType = "virtual_account"
	MethodTypeQRIS           MethodType = "qris"
	MethodTypeRetailOutlet   MethodType = "retail_outlet"
)

type Method struct {
	Code      string
	Name      string
	Type      MethodType
	Fee       decimal.Decimal
	MinAmount decimal.Decimal
}

type Methods struct {
	byCode map[string]Method
	order  []string
}

var methodCodes = []struct {
	typ   MethodType
	codes []string
}{
	{MethodTypeEWallet, []string{"ID_OVO", "ID_DANA", "ID_SHOPEEPAY", "ID_LINKAJA"}},
	{MethodTypeVirtualAccount, []string{"BCA", "BNI", "BRI", "MANDIRI", "PERMATA"}},
	{MethodTypeQRIS, []string{"QRIS"}},
	{MethodTypeRetailOutlet, []string{"ALFAMART", "INDOMARET"}},
	{MethodTypeBalance, []string{entity.PaymentMethodBalance}},
}

func NewMethods(fees, minimums config.FeeSchedule) *Methods {
	m := &Methods{byCode: make(map[string]Method)}
	for _, group := range methodCodes {
		for _, code := range group.codes {
			m.byCode[code] = Method{
				Code:      code,
				Name:      displayName(group.typ, code),
				Type:      group.typ,
				Fee:       scheduleFor(fees, group.typ),
				MinAmount: scheduleFor(minimums, group.typ),
			}
			m.order = append(m.order, code)
		}
	}
	return m
}

func (m *Methods) IsValid(code string) bool {
	_, ok := m.byCode[code]
	return ok
}

func (m *Methods) Lookup(code string) (Method, error) {
	method, ok := m.byCode[code]
	if !ok {
		return Method{}, fmt.Errorf("%w: %s", ErrInvalidPaymentMethod, code)
	}
	return method, nil
}

// AdminFee returns zero for unknown codes; validate with IsValid first.
func (m *Methods) AdminFee(code string) decimal.Decimal {
	return m.byCode[code].Fee
}

func (m *Methods) MinimumAmount(code string) decimal.Decimal {
	return m.byCode[code].MinAmount
}

// Grouped lists the catalog by method type in display order.
func (m *Methods) Grouped(includeBalance bool) map[MethodType][]Method {
	grouped := make(map[MethodType][]Method)
	for _, code := range m.order {
		method := m.byCode[code]
		if method.Type == MethodTypeBalance && !includeBalance {
			continue
		}
		grouped[method.Type] = append(grouped[method.Type], method)
	}
	return grouped
}

func scheduleFor(s config.FeeSchedule, typ MethodType) decimal.Decimal {
	switch typ {
	case MethodTypeEWallet:
		return s.EWallet
	case MethodTypeVirtualAccount:
		return s.VirtualAccount
	case MethodTypeQRIS:
		return s.QRIS
	case MethodTypeRetailOutlet:
		return s.RetailOutlet
	default:
		return s.Balance
	}
}

func displayName(typ MethodType, code string) string {
	switch typ {
	case MethodTypeEWallet:
		return strings.TrimPrefix(code, "ID_")
	case MethodTypeVirtualAccount:
		return "VA " + code
	case MethodTypeBalance:
		return "Saldo Akun"
	default:
		return code
	}
}
