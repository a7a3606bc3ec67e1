package ledger

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"Bondr/internal/address"
)

// NativeDecimals is the display precision of the native asset.
const NativeDecimals = 9

// maxDecimals bounds mint precision.
const maxDecimals = 18

// AssetKind selects the transfer path of an escrow.
type AssetKind uint8

const (
	AssetNative AssetKind = iota
	AssetToken
)

// String returns the wire name of the kind.
func (k AssetKind) String() string {
	switch k {
	case AssetNative:
		return "native"
	case AssetToken:
		return "token"
	default:
		return fmt.Sprintf("AssetKind(%d)", uint8(k))
	}
}

// Asset describes what an escrow holds: the native asset, or a token of one mint.
// Mint and Decimals are meaningful only for tokens.
type Asset struct {
	Kind     AssetKind
	Mint     address.Address
	Decimals uint8
}

// Native returns the native asset descriptor.
func Native() Asset {
	return Asset{Kind: AssetNative}
}

// Token returns a token asset descriptor.
func Token(mint address.Address, decimals uint8) Asset {
	return Asset{Kind: AssetToken, Mint: mint, Decimals: decimals}
}

// IsToken reports whether the asset moves through token accounts.
func (a Asset) IsToken() bool {
	return a.Kind == AssetToken
}

// precision returns the number of decimal places used for display.
func (a Asset) precision() uint8 {
	if a.IsToken() {
		return a.Decimals
	}
	return NativeDecimals
}

// validate rejects unknown kinds and out-of-range precision.
func (a Asset) validate() error {
	switch a.Kind {
	case AssetNative:
		if !a.Mint.IsZero() || a.Decimals != 0 {
			return withDetail(ErrInvalidAsset, "native asset carries a mint")
		}
		return nil
	case AssetToken:
		if a.Mint.IsZero() {
			return withDetail(ErrInvalidAsset, "token asset without mint")
		}
		if a.Decimals > maxDecimals {
			return ErrInvalidDecimals
		}
		return nil
	default:
		return withDetail(ErrInvalidAsset, "unknown kind %d", a.Kind)
	}
}

// FormatAmount renders minor units as a decimal string in the asset's precision.
func FormatAmount(amount uint64, a Asset) string {
	units := new(big.Int).SetUint64(amount)
	return decimal.NewFromBigInt(units, -int32(a.precision())).StringFixed(int32(a.precision()))
}

type assetJSON struct {
	Kind     string           `json:"kind"`
	Mint     *address.Address `json:"mint,omitempty"`
	Decimals uint8            `json:"decimals,omitempty"`
}

// MarshalJSON encodes the asset as {"kind":"native"} or {"kind":"token","mint":..,"decimals":..}.
func (a Asset) MarshalJSON() ([]byte, error) {
	out := assetJSON{Kind: a.Kind.String()}
	if a.IsToken() {
		mint := a.Mint
		out.Mint = &mint
		out.Decimals = a.Decimals
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (a *Asset) UnmarshalJSON(data []byte) error {
	var in assetJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	switch in.Kind {
	case "", "native":
		*a = Native()
	case "token":
		if in.Mint == nil {
			return fmt.Errorf("token asset requires a mint")
		}
		*a = Token(*in.Mint, in.Decimals)
	default:
		return fmt.Errorf("unknown asset kind %q", in.Kind)
	}

	return nil
}
