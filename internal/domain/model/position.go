package model

import (
	"strings"
	"time"
)

// PositionRecord is one weekly observation of a tracked trader group in one market.
type PositionRecord struct {
	MarketID   string    `json:"market"`
	ReportDate time.Time `json:"date"`
	Long       int64     `json:"long"`
	Short      int64     `json:"short"`
}

// Net is long minus short contracts.
func (r PositionRecord) Net() int64 { return r.Long - r.Short }

// Market is an alias table entry: what to look for in the CFTC file and how to show it.
type Market struct {
	ID          string `toml:"id" yaml:"id" json:"id" validate:"required"`
	Display     string `toml:"display" yaml:"display" json:"display"`
	Keyword     string `toml:"keyword" yaml:"keyword" json:"keyword" validate:"required"`
	PriceTicker string `toml:"price_ticker" yaml:"price_ticker" json:"price_ticker,omitempty"`
}

// Name returns Display, falling back to ID.
func (m Market) Name() string {
	if strings.TrimSpace(m.Display) != "" {
		return m.Display
	}
	return m.ID
}

// DefaultMarkets is the built-in alias table used when the config has none.
func DefaultMarkets() []Market {
	return []Market{
		{ID: "EUR", Display: "Euro FX", Keyword: "EURO FX", PriceTicker: "6E=F"},
		{ID: "DX", Display: "US Dollar Index", Keyword: "US DOLLAR INDEX", PriceTicker: "DX-Y.NYB"},
		{ID: "GC", Display: "Gold", Keyword: "GOLD", PriceTicker: "GC=F"},
		{ID: "CL", Display: "Crude Oil WTI", Keyword: "CRUDE OIL", PriceTicker: "CL=F"},
		{ID: "ES", Display: "E-mini S&P 500", Keyword: "S&P 500", PriceTicker: "ES=F"},
	}
}

type ReportType string

const (
	ReportLegacy        ReportType = "legacy"
	ReportLegacyFutOpt  ReportType = "legacy_futopt"
	ReportDisaggregated ReportType = "disaggregated"
	ReportTFF           ReportType = "tff"
)

type TraderGroup string

const (
	GroupNonCommercial      TraderGroup = "noncommercial"
	GroupCommercial         TraderGroup = "commercial"
	GroupNonReportable      TraderGroup = "nonreportable"
	GroupProducerMerchant   TraderGroup = "producer_merchant"
	GroupSwapDealer         TraderGroup = "swap_dealer"
	GroupManagedMoney       TraderGroup = "managed_money"
	GroupOtherReportable    TraderGroup = "other_reportable"
	GroupDealerIntermediary TraderGroup = "dealer_intermediary"
	GroupAssetManager       TraderGroup = "asset_manager"
	GroupLeveragedFunds     TraderGroup = "leveraged_funds"
)

var reportGroups = map[ReportType][]TraderGroup{
	ReportLegacy:        {GroupNonCommercial, GroupCommercial, GroupNonReportable},
	ReportLegacyFutOpt:  {GroupNonCommercial, GroupCommercial, GroupNonReportable},
	ReportDisaggregated: {GroupManagedMoney, GroupProducerMerchant, GroupSwapDealer, GroupOtherReportable},
	ReportTFF:           {GroupLeveragedFunds, GroupDealerIntermediary, GroupAssetManager, GroupOtherReportable},
}

// ReportTypes lists every known report type.
func ReportTypes() []ReportType {
	return []ReportType{ReportLegacy, ReportLegacyFutOpt, ReportDisaggregated, ReportTFF}
}

func (t ReportType) Valid() bool {
	_, ok := reportGroups[t]
	return ok
}

// Groups returns the trader groups published in this report type; the first is the default.
func (t ReportType) Groups() []TraderGroup {
	return append([]TraderGroup(nil), reportGroups[t]...)
}

func (t ReportType) DefaultGroup() TraderGroup {
	gs := reportGroups[t]
	if len(gs) == 0 {
		return ""
	}
	return gs[0]
}

func (t ReportType) HasGroup(g TraderGroup) bool {
	for _, x := range reportGroups[t] {
		if x == g {
			return true
		}
	}
	return false
}
