package asset

// BTCAssetID is the sentinel id of the native asset. Every other id refers
// to an RGB asset held by the wallet.
const BTCAssetID = "BTC"

// BTCPrecision is fixed by the protocol; RGB assets declare their own.
const BTCPrecision uint8 = 8

// Asset describes a spendable asset: identity metadata plus the current
// spendable balance in minor units. Balances are integers end to end; no
// floating amount ever crosses a package boundary.
type Asset struct {
	ID        string
	Ticker    string
	Name      string
	Precision uint8
	Spendable uint64
}

// BTC returns the native asset descriptor with the given spendable balance
// in satoshi.
func BTC(spendable uint64) Asset {
	return Asset{
		ID:        BTCAssetID,
		Ticker:    "BTC",
		Name:      "Bitcoin",
		Precision: BTCPrecision,
		Spendable: spendable,
	}
}

func (a Asset) IsBTC() bool {
	return a.ID == BTCAssetID
}
