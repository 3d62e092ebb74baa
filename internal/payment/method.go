// Package payment defines the closed set of payment methods and the
// confirmation strategies for the synchronous ones. NETS QR and PayPal are
// asynchronous two-phase flows owned by the checkout orchestrator; this
// package still provides their method identities and payload types.
package payment

// Method is the closed enumeration of supported payment methods.
type Method string

const (
	MethodCash   Method = "cash"
	MethodCard   Method = "card"
	MethodWallet Method = "wallet"
	MethodPayNow Method = "paynow"
	MethodNets   Method = "nets"
	MethodPayPal Method = "paypal"
)

// ParseMethod maps a form value onto the closed enumeration.
func ParseMethod(s string) (Method, bool) {
	switch Method(s) {
	case MethodCash, MethodCard, MethodWallet, MethodPayNow, MethodNets, MethodPayPal:
		return Method(s), true
	}
	return "", false
}
