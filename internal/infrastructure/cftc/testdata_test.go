package cftc

// Trimmed disaggregated-report lines: name, yymmdd, date, contract code,
// market code, region, commodity code, open interest, then group columns.
const disaggSample = `"GOLD - COMMODITY EXCHANGE INC.",240102,2024-01-02,088691,CMX ,01,088 ,   500000,  10000,  20000,  30000,  40000,   1000,  150000,   50000,   2000,   7000,   8000,   900
"GOLD - COMMODITY EXCHANGE INC.",240109,2024-01-09,088691,CMX ,01,088 ,   510000,  10000,  20000,  30000,  40000,   1000,  160000,   45000,   2000,   7000,   8000,   900
"MICRO GOLD - COMMODITY EXCHANGE INC.",240109,2024-01-09,088695,CMX ,01,088 ,     9000,    100,    200,    300,    400,     10,    1500,     500,     20,     70,     80,     9
"GOLD - COMMODITY EXCHANGE INC.",240116,2024-01-16,088691,CMX ,01,088 ,   520000,  10000,  20000,  30000,  40000,   1000,  140000,   60000,   2000,   7000,   8000,   900
"SILVER - COMMODITY EXCHANGE INC.",240116,2024-01-16,084691,CMX ,01,084 ,   150000,   5000,   6000,   7000,   8000,    100,   40000,   20000,    200,    700,    800,    90
"GOLD - COMMODITY EXCHANGE INC.",BADDATE,not-a-date,088691,CMX ,01,088 ,   520000,  10000,  20000,  30000,  40000,   1000,  140000,   60000,   2000,   7000,   8000,   900
`

const legacyHeader = `"Market_and_Exchange_Names","As_of_Date_In_Form_YYMMDD","Report_Date_as_YYYY-MM-DD","CFTC_Contract_Market_Code","CFTC_Market_Code","CFTC_Region_Code","CFTC_Commodity_Code","Open_Interest_All","NonComm_Positions_Long_All","NonComm_Positions_Short_All","NonComm_Postions_Spread_All","Comm_Positions_Long_All","Comm_Positions_Short_All"
"EURO FX - CHICAGO MERCANTILE EXCHANGE",240102,2024-01-02,099741,CME ,01,099 ,   700000,  200000,  100000,  5000,  300000,  400000
"EURO FX - CHICAGO MERCANTILE EXCHANGE",240109,          ,099741,CME ,01,099 ,   700000,  210000,  100000,  5000,  300000,  400000
`
