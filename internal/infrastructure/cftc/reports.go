package cftc

import "cotscan/internal/domain/model"

// DefaultURLs are the current-year CFTC files per report type.
var DefaultURLs = map[model.ReportType]string{
	model.ReportLegacy:        "https://www.cftc.gov/dea/futures/deacot.txt",
	model.ReportLegacyFutOpt:  "https://www.cftc.gov/dea/futures/deacot_futopt.txt",
	model.ReportDisaggregated: "https://www.cftc.gov/dea/futures/deacotdisagg.txt",
	model.ReportTFF:           "https://www.cftc.gov/dea/futures/deatif.txt",
}

// Leading columns shared by every report layout.
const (
	colName         = 0
	colDateYYMMDD   = 1
	colDateISO      = 2
	colContractCode = 3
	colOpenInterest = 7
)

// column pair (long, short) of a trader group
type columns struct{ long, short int }

var layouts = map[model.ReportType]map[model.TraderGroup]columns{
	model.ReportLegacy: {
		model.GroupNonCommercial: {8, 9},
		model.GroupCommercial:    {11, 12},
		model.GroupNonReportable: {15, 16},
	},
	model.ReportDisaggregated: {
		model.GroupProducerMerchant: {8, 9},
		model.GroupSwapDealer:       {10, 11},
		model.GroupManagedMoney:     {13, 14},
		model.GroupOtherReportable:  {16, 17},
	},
	model.ReportTFF: {
		model.GroupDealerIntermediary: {8, 9},
		model.GroupAssetManager:       {11, 12},
		model.GroupLeveragedFunds:     {14, 15},
		model.GroupOtherReportable:    {17, 18},
	},
}

func init() {
	layouts[model.ReportLegacyFutOpt] = layouts[model.ReportLegacy]
}

func layoutFor(rt model.ReportType, g model.TraderGroup) (columns, bool) {
	c, ok := layouts[rt][g]
	return c, ok
}
