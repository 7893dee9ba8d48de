package strategyconfig

// Config is the full strategy configuration: data handling, factor
// parameters, weight mappings, backtest and portfolio settings.
type Config struct {
	Data         DataConfig      `yaml:"data" json:"data"`
	Factors      FactorConfig    `yaml:"factors" json:"factors"`
	ShortFactors FactorConfig    `yaml:"short_factors" json:"short_factors"`
	Weights      FactorWeights   `yaml:"weights" json:"weights"`
	Backtest     BacktestConfig  `yaml:"backtest" json:"backtest"`
	Portfolio    PortfolioConfig `yaml:"portfolio" json:"portfolio"`
	Signals      SignalConfig    `yaml:"signals" json:"signals"`
}

// DataConfig covers the data-fetch collaborator's knobs.
type DataConfig struct {
	CacheDir         string `yaml:"cache_dir" json:"cache_dir"`
	UseCache         bool   `yaml:"use_cache" json:"use_cache"`
	CacheExpiryHours int    `yaml:"cache_expiry_hours" json:"cache_expiry_hours"`
	BatchSize        int    `yaml:"batch_size" json:"batch_size"`
	AdjustPrices     bool   `yaml:"adjust_prices" json:"adjust_prices"`
}

// FactorConfig parameterizes factor computation. The same shape serves
// both the standard and the short-horizon parameter sets.
type FactorConfig struct {
	MomentumWindows   []int   `yaml:"momentum_windows" json:"momentum_windows"`
	VolatilityWindows []int   `yaml:"volatility_windows" json:"volatility_windows"`
	ZScoreWindow      int     `yaml:"zscore_window" json:"zscore_window"`
	WinsorizeSigma    float64 `yaml:"winsorize_sigma" json:"winsorize_sigma"`
	MinDataPoints     int     `yaml:"min_data_points" json:"min_data_points"`
}

// FactorWeights holds the nested weight mappings: per-family sub-metric
// weights plus the composite family weights. Weights need not sum to 1
// but must be non-negative.
type FactorWeights struct {
	Momentum  map[string]float64 `yaml:"momentum" json:"momentum"`
	Value     map[string]float64 `yaml:"value" json:"value"`
	Quality   map[string]float64 `yaml:"quality" json:"quality"`
	Growth    map[string]float64 `yaml:"growth" json:"growth"`
	Technical map[string]float64 `yaml:"technical" json:"technical"`
	Composite map[string]float64 `yaml:"composite" json:"composite"`
}

// Family returns the sub-metric weight map for a factor family name.
func (w FactorWeights) Family(name string) (map[string]float64, bool) {
	switch name {
	case "momentum":
		return w.Momentum, true
	case "value":
		return w.Value, true
	case "quality":
		return w.Quality, true
	case "growth":
		return w.Growth, true
	case "technical":
		return w.Technical, true
	}
	return nil, false
}

// BacktestConfig parameterizes the simulation.
type BacktestConfig struct {
	InitialCapital     float64 `yaml:"initial_capital" json:"initial_capital"`
	RebalanceFrequency string  `yaml:"rebalance_frequency" json:"rebalance_frequency"` // daily, weekly, monthly, quarterly
	RebalanceWeekday   string  `yaml:"rebalance_weekday" json:"rebalance_weekday"`     // for weekly frequency
	TransactionCost    float64 `yaml:"transaction_cost" json:"transaction_cost"`       // flat rate on notional
	Slippage           float64 `yaml:"slippage" json:"slippage"`                       // unfavorable price adjustment rate
	MaxPositionSize    float64 `yaml:"max_position_size" json:"max_position_size"`
	MinPositionSize    float64 `yaml:"min_position_size" json:"min_position_size"`
	Benchmark          string  `yaml:"benchmark" json:"benchmark"`
	StartDate          string  `yaml:"start_date" json:"start_date"` // YYYY-MM-DD, empty = full history
	EndDate            string  `yaml:"end_date" json:"end_date"`
}

// PortfolioConfig parameterizes portfolio construction.
type PortfolioConfig struct {
	OptimizationMethod     string  `yaml:"optimization_method" json:"optimization_method"`
	TargetVolatility       float64 `yaml:"target_volatility" json:"target_volatility"`
	MaxSectorWeight        float64 `yaml:"max_sector_weight" json:"max_sector_weight"`
	MaxTurnover            float64 `yaml:"max_turnover" json:"max_turnover"`
	RiskFreeRate           float64 `yaml:"risk_free_rate" json:"risk_free_rate"`
	TopK                   int     `yaml:"top_k" json:"top_k"`
	CovarianceLookbackDays int     `yaml:"covariance_lookback_days" json:"covariance_lookback_days"`
	SectorCapIterations    int     `yaml:"sector_cap_iterations" json:"sector_cap_iterations"`
	ConvergenceTolerance   float64 `yaml:"convergence_tolerance" json:"convergence_tolerance"`
	RiskAversion           float64 `yaml:"risk_aversion" json:"risk_aversion"`
}

// SignalConfig parameterizes the short-horizon weekly signal scan.
type SignalConfig struct {
	ScanWeekday   string  `yaml:"scan_weekday" json:"scan_weekday"`
	TopK          int     `yaml:"top_k" json:"top_k"`
	StopLossPct   float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	TakeProfitPct float64 `yaml:"take_profit_pct" json:"take_profit_pct"`
	Schedule      string  `yaml:"schedule" json:"schedule"` // cron expression for scheduled scans
}

// Default returns the reference configuration. Values mirror a
// large-cap US equity setup with monthly rebalancing.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			CacheDir:         "./data_cache",
			UseCache:         true,
			CacheExpiryHours: 24,
			BatchSize:        10,
			AdjustPrices:     true,
		},
		Factors: FactorConfig{
			MomentumWindows:   []int{21, 63, 126, 252},
			VolatilityWindows: []int{30, 90},
			ZScoreWindow:      252,
			WinsorizeSigma:    3.0,
			MinDataPoints:     252,
		},
		ShortFactors: FactorConfig{
			MomentumWindows:   []int{5, 10, 21},
			VolatilityWindows: []int{10, 20},
			ZScoreWindow:      63,
			WinsorizeSigma:    3.0,
			MinDataPoints:     63,
		},
		Weights: FactorWeights{
			Momentum: map[string]float64{
				"momentum_21d":  0.1,
				"momentum_63d":  0.3,
				"momentum_126d": 0.4,
				"momentum_252d": 0.2,
			},
			Value: map[string]float64{
				"pe_ratio":  0.3,
				"pb_ratio":  0.2,
				"ps_ratio":  0.2,
				"peg_ratio": 0.2,
				"ev_ebitda": 0.1,
			},
			Quality: map[string]float64{
				"roe":            0.3,
				"roa":            0.2,
				"profit_margin":  0.2,
				"current_ratio":  0.15,
				"debt_to_equity": 0.15,
			},
			Growth: map[string]float64{
				"revenue_growth":  0.5,
				"earnings_growth": 0.5,
			},
			Technical: map[string]float64{
				"rsi":            0.2,
				"price_to_sma20": 0.25,
				"price_to_sma50": 0.25,
				"volume_ratio":   0.1,
				"volatility":     0.2,
			},
			Composite: map[string]float64{
				"value":     0.25,
				"momentum":  0.20,
				"quality":   0.25,
				"growth":    0.15,
				"technical": 0.15,
			},
		},
		Backtest: BacktestConfig{
			InitialCapital:     1_000_000,
			RebalanceFrequency: "monthly",
			RebalanceWeekday:   "Monday",
			TransactionCost:    0.001,  // 10 bps
			Slippage:           0.0005, // 5 bps
			MaxPositionSize:    0.10,
			MinPositionSize:    0.02,
			Benchmark:          "SPY",
		},
		Portfolio: PortfolioConfig{
			OptimizationMethod:     "equal_weight",
			TargetVolatility:       0.15,
			MaxSectorWeight:        0.30,
			MaxTurnover:            0.50,
			RiskFreeRate:           0.04,
			TopK:                   30,
			CovarianceLookbackDays: 252,
			SectorCapIterations:    10,
			ConvergenceTolerance:   1e-6,
			RiskAversion:           1.0,
		},
		Signals: SignalConfig{
			ScanWeekday:   "Friday",
			TopK:          5,
			StopLossPct:   0.05,
			TakeProfitPct: 0.08,
			Schedule:      "0 18 * * FRI",
		},
	}
}
