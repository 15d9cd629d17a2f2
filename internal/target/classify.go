package target

import (
	"regexp"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// Lightning invoice prefixes per BOLT11, longest first so regtest is not
// shadowed by the mainnet prefix.
var lnInvoicePrefixes = []string{"lnbcrt", "lntb", "lnbc"}

const rgbScheme = "rgb:"

var lightningAddressRE = regexp.MustCompile(
	`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?)*\.[a-zA-Z]{2,}$`,
)

// Networks an address may belong to, tried in order.
var addressParams = []*chaincfg.Params{
	&chaincfg.MainNetParams,
	&chaincfg.TestNet3Params,
	&chaincfg.RegressionNetParams,
}

// Classify maps raw pasted text onto a payment target. It is total and
// pure: any input yields exactly one variant, never an error, and the same
// input always yields the same variant. Precedence follows protocol
// specificity: lightning invoice, then RGB invoice, then on-chain address,
// then lightning address.
func Classify(raw string) Target {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Invalid{Reason: "enter a destination"}
	}

	lower := strings.ToLower(text)
	for _, prefix := range lnInvoicePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return LightningInvoice{Raw: text}
		}
	}

	if strings.HasPrefix(lower, rgbScheme) {
		return RgbInvoice{Raw: text}
	}

	if isBitcoinAddress(text) {
		return BitcoinAddress{Address: text}
	}

	if lightningAddressRE.MatchString(text) {
		return LightningAddress{Identifier: text}
	}

	return Invalid{Reason: "unrecognized destination format"}
}

// isBitcoinAddress accepts the standard spendable forms (P2PKH, P2SH,
// P2WPKH, P2WSH, P2TR) on mainnet, testnet or regtest. Checksums and
// witness versions are enforced by the btcutil decoder.
func isBitcoinAddress(text string) bool {
	for _, params := range addressParams {
		decoded, err := btcutil.DecodeAddress(text, params)
		if err != nil {
			continue
		}
		if !decoded.IsForNet(params) {
			continue
		}
		switch decoded.(type) {
		case *btcutil.AddressPubKeyHash,
			*btcutil.AddressScriptHash,
			*btcutil.AddressWitnessPubKeyHash,
			*btcutil.AddressWitnessScriptHash,
			*btcutil.AddressTaproot:
			return true
		}
	}
	return false
}
