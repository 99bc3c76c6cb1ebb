package carteira

import (
	"fmt"
	"strings"
)

// AssetClass categorizes an instrument. The class drives which quote
// sources apply and how dividend payment dates are estimated.
type AssetClass string

const (
	Equity            AssetClass = "acao"
	RealEstateFund    AssetClass = "fii"
	DepositaryReceipt AssetClass = "bdr"
	ETF               AssetClass = "etf"
	OpenEndFund       AssetClass = "fundo"
	GovernmentBond    AssetClass = "tesouro"
	TermDeposit       AssetClass = "renda-fixa"
	FXPair            AssetClass = "moeda"
)

// ParseAssetClass maps the registry vocabulary onto an AssetClass.
// Unknown spellings default to TermDeposit, the sentinel-priced class.
func ParseAssetClass(s string) AssetClass {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "acao", "ação", "acoes", "ações", "stock":
		return Equity
	case "fii", "fiagro":
		return RealEstateFund
	case "bdr":
		return DepositaryReceipt
	case "etf":
		return ETF
	case "fundo", "fundos", "fund":
		return OpenEndFund
	case "tesouro", "tesouro direto":
		return GovernmentBond
	case "moeda", "currency", "fx":
		return FXPair
	default:
		return TermDeposit
	}
}

// Exchangeable reports whether the class trades on an exchange and is
// therefore eligible for bulk exchange quotes.
func (c AssetClass) Exchangeable() bool {
	switch c {
	case Equity, RealEstateFund, DepositaryReceipt, ETF:
		return true
	}
	return false
}

// PaysDividends reports whether the class can emit dividend events.
func (c AssetClass) PaysDividends() bool {
	switch c {
	case Equity, RealEstateFund, DepositaryReceipt, ETF:
		return true
	}
	return false
}

// Instrument is one row of the asset registry.
type Instrument struct {
	// Ticker is the unique identifier used across the ledger, the
	// quote map and the dividend calendar.
	Ticker string

	Name  string
	Class AssetClass

	// Currency the instrument is quoted in, e.g. "BRL" or "USD".
	Currency string

	// RegistryID is the class-specific secondary identifier: a fund's
	// CNPJ, or a bond series like "IPCA-2029". Empty otherwise.
	RegistryID string

	// Manual, when non-empty, is a user-entered price that bypasses the
	// source chain entirely.
	Manual string
}

func (s Instrument) String() string {
	return fmt.Sprintf("%s (%s)", s.Ticker, s.Class)
}

// IsFXPair reports whether the instrument names a currency pair such
// as "USDBRL": two ISO 4217 codes back to back.
func (s Instrument) IsFXPair() bool {
	return s.Class == FXPair
}

// FXBase returns the base and quote currencies of a pair ticker, or
// false if the ticker is not a pair.
func (s Instrument) FXBase() (base, quote string, ok bool) {
	if len(s.Ticker) != 6 {
		return "", "", false
	}
	return s.Ticker[:3], s.Ticker[3:], true
}

// FXTicker builds the pair ticker for converting from one currency to
// another, e.g. FXTicker("USD", "BRL") = "USDBRL".
func FXTicker(from, to string) string {
	return strings.ToUpper(from) + strings.ToUpper(to)
}
