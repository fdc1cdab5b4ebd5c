package catalog

// builtinSeries is the default registry of key US economic indicators. IDs are
// the provider's native series codes. Priorities follow the importance of the
// indicator to headline economic reporting: 1 for the critical releases (GDP,
// unemployment, CPI), 2 for major policy and trade series, 3 for sectoral
// series, 4-5 for specialized detail.
var builtinSeries = []SeriesDefinition{
	// National accounts.
	{ID: "GDPC1", Name: "Real Gross Domestic Product", Category: NationalAccounts, Source: SourceFRED, Frequency: Quarterly, Priority: 1, IsActive: true},
	{ID: "GDP", Name: "Gross Domestic Product", Category: NationalAccounts, Source: SourceFRED, Frequency: Quarterly, Priority: 1, IsActive: true},
	{ID: "GDPPOT", Name: "Real Potential Gross Domestic Product", Category: NationalAccounts, Source: SourceFRED, Frequency: Quarterly, Priority: 2, IsActive: true},
	{ID: "A939RX0Q048SBEA", Name: "Real GDP Per Capita", Category: NationalAccounts, Source: SourceBEA, Frequency: Quarterly, Priority: 2, IsActive: true},

	// Labor market.
	{ID: "UNRATE", Name: "Unemployment Rate", Category: LaborMarket, Source: SourceFRED, Frequency: Monthly, Priority: 1, IsActive: true},
	{ID: "PAYEMS", Name: "All Employees, Total Nonfarm", Category: LaborMarket, Source: SourceFRED, Frequency: Monthly, Priority: 1, IsActive: true},
	{ID: "CIVPART", Name: "Labor Force Participation Rate", Category: LaborMarket, Source: SourceFRED, Frequency: Monthly, Priority: 2, IsActive: true},
	{ID: "ICSA", Name: "Initial Claims", Category: LaborMarket, Source: SourceFRED, Frequency: Weekly, Priority: 2, IsActive: true},
	{ID: "CES0500000003", Name: "Average Hourly Earnings", Category: LaborMarket, Source: SourceBLS, Frequency: Monthly, Priority: 2, IsActive: true},
	{ID: "LNS12300060", Name: "Prime-Age Employment-Population Ratio", Category: LaborMarket, Source: SourceBLS, Frequency: Monthly, Priority: 3, IsActive: true},

	// Prices.
	{ID: "CPIAUCSL", Name: "Consumer Price Index for All Urban Consumers", Category: Prices, Source: SourceFRED, Frequency: Monthly, Priority: 1, IsActive: true},
	{ID: "CPILFESL", Name: "Core CPI (Less Food and Energy)", Category: Prices, Source: SourceFRED, Frequency: Monthly, Priority: 1, IsActive: true},
	{ID: "PCEPI", Name: "PCE Price Index", Category: Prices, Source: SourceBEA, Frequency: Monthly, Priority: 1, IsActive: true},
	{ID: "PPIACO", Name: "Producer Price Index: All Commodities", Category: Prices, Source: SourceBLS, Frequency: Monthly, Priority: 3, IsActive: true},
	{ID: "CUUR0000SA0", Name: "CPI-U, US City Average", Category: Prices, Source: SourceBLS, Frequency: Monthly, Priority: 3, IsActive: true},

	// Monetary policy and rates.
	{ID: "FEDFUNDS", Name: "Federal Funds Effective Rate", Category: MonetaryPolicy, Source: SourceFRED, Frequency: Daily, Priority: 1, IsActive: true},
	{ID: "DGS10", Name: "10-Year Treasury Constant Maturity Rate", Category: MonetaryPolicy, Source: SourceTreasury, Frequency: Daily, Priority: 2, IsActive: true},
	{ID: "DGS2", Name: "2-Year Treasury Constant Maturity Rate", Category: MonetaryPolicy, Source: SourceTreasury, Frequency: Daily, Priority: 2, IsActive: true},
	{ID: "T10Y2Y", Name: "10-Year Minus 2-Year Treasury Spread", Category: MonetaryPolicy, Source: SourceTreasury, Frequency: Daily, Priority: 3, IsActive: true},
	{ID: "M2SL", Name: "M2 Money Stock", Category: MonetaryPolicy, Source: SourceFRED, Frequency: Weekly, Priority: 3, IsActive: true},

	// International trade.
	{ID: "BOPGSTB", Name: "Trade Balance: Goods and Services", Category: InternationalTrade, Source: SourceCensus, Frequency: Monthly, Priority: 2, IsActive: true},
	{ID: "IMPGS", Name: "Imports of Goods and Services", Category: InternationalTrade, Source: SourceBEA, Frequency: Quarterly, Priority: 3, IsActive: true},
	{ID: "EXPGS", Name: "Exports of Goods and Services", Category: InternationalTrade, Source: SourceBEA, Frequency: Quarterly, Priority: 3, IsActive: true},

	// Housing.
	{ID: "HOUST", Name: "Housing Starts", Category: Housing, Source: SourceCensus, Frequency: Monthly, Priority: 2, IsActive: true},
	{ID: "PERMIT", Name: "New Private Housing Permits", Category: Housing, Source: SourceCensus, Frequency: Monthly, Priority: 3, IsActive: true},
	{ID: "CSUSHPISA", Name: "Case-Shiller U.S. National Home Price Index", Category: Housing, Source: SourceFRED, Frequency: Monthly, Priority: 3, IsActive: true},
	{ID: "MORTGAGE30US", Name: "30-Year Fixed Rate Mortgage Average", Category: Housing, Source: SourceFRED, Frequency: Weekly, Priority: 3, IsActive: true},

	// Manufacturing.
	{ID: "INDPRO", Name: "Industrial Production Index", Category: Manufacturing, Source: SourceFRED, Frequency: Monthly, Priority: 2, IsActive: true},
	{ID: "TCU", Name: "Capacity Utilization", Category: Manufacturing, Source: SourceFRED, Frequency: Monthly, Priority: 3, IsActive: true},
	{ID: "DGORDER", Name: "Manufacturers' New Orders: Durable Goods", Category: Manufacturing, Source: SourceCensus, Frequency: Monthly, Priority: 3, IsActive: true},
	{ID: "AMTMNO", Name: "Manufacturers' New Orders: Total Manufacturing", Category: Manufacturing, Source: SourceCensus, Frequency: Monthly, Priority: 4, IsActive: true},

	// Consumer.
	{ID: "RSAFS", Name: "Advance Retail Sales", Category: Consumer, Source: SourceCensus, Frequency: Monthly, Priority: 2, IsActive: true},
	{ID: "PCE", Name: "Personal Consumption Expenditures", Category: Consumer, Source: SourceBEA, Frequency: Monthly, Priority: 2, IsActive: true},
	{ID: "PSAVERT", Name: "Personal Saving Rate", Category: Consumer, Source: SourceBEA, Frequency: Monthly, Priority: 4, IsActive: true},
	{ID: "UMCSENT", Name: "University of Michigan Consumer Sentiment", Category: Consumer, Source: SourceFRED, Frequency: Monthly, Priority: 4, IsActive: true},
	{ID: "TOTALSA", Name: "Total Vehicle Sales", Category: Consumer, Source: SourceBEA, Frequency: Monthly, Priority: 5, IsActive: true},
}
