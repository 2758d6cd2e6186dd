package backtest

// Position sizing modes.
const (
	// SizingFull invests the maximum allowed fraction of available cash.
	SizingFull = "full"
	// SizingFixed trades a 10% slice of available cash per entry rather
	// than a true fixed share count.
	SizingFixed = "fixed"
)

// fixedSizingFraction is the cash slice used by SizingFixed.
const fixedSizingFraction = 0.10

// Config holds the cost and sizing options for one simulation run.
type Config struct {
	// InitialCapital is the starting cash. Must be positive.
	InitialCapital float64 `yaml:"initial_capital"`

	// TransactionCost is the commission rate charged on each fill's
	// notional value, in [0, 1).
	TransactionCost float64 `yaml:"transaction_cost"`

	// Slippage is the adverse fill-price adjustment rate, in [0, 1).
	// Buys fill at close×(1+Slippage), sells at close×(1−Slippage).
	Slippage float64 `yaml:"slippage"`

	// PositionSizing selects the entry sizing mode, SizingFull or
	// SizingFixed. Empty defaults to SizingFull.
	PositionSizing string `yaml:"position_sizing"`

	// MaxPositionRatio caps the fraction of cash committed to an entry,
	// in (0, 1].
	MaxPositionRatio float64 `yaml:"max_position_ratio"`

	// StopLoss forces an exit once the close falls this fraction below
	// the entry price, in (0, 1]. Zero disables the stop.
	StopLoss float64 `yaml:"stop_loss"`

	// TakeProfit forces an exit once the close rises this fraction above
	// the entry price, in (0, 1]. Zero disables it.
	TakeProfit float64 `yaml:"take_profit"`
}

// DefaultConfig returns the standard cost model: 100k starting capital,
// 0.1% commission, 0.05% slippage, full sizing, no stops.
func DefaultConfig() Config {
	return Config{
		InitialCapital:   100000,
		TransactionCost:  0.001,
		Slippage:         0.0005,
		PositionSizing:   SizingFull,
		MaxPositionRatio: 1.0,
	}
}

// Validate checks every option against its documented range.
func (c Config) Validate() error {
	if c.InitialCapital <= 0 {
		return validationErrorf("initial capital must be positive, got %v", c.InitialCapital)
	}
	if c.TransactionCost < 0 || c.TransactionCost >= 1 {
		return validationErrorf("transaction cost must be in [0, 1), got %v", c.TransactionCost)
	}
	if c.Slippage < 0 || c.Slippage >= 1 {
		return validationErrorf("slippage must be in [0, 1), got %v", c.Slippage)
	}
	switch c.PositionSizing {
	case "", SizingFull, SizingFixed:
	default:
		return validationErrorf("unknown position sizing %q", c.PositionSizing)
	}
	if c.MaxPositionRatio <= 0 || c.MaxPositionRatio > 1 {
		return validationErrorf("max position ratio must be in (0, 1], got %v", c.MaxPositionRatio)
	}
	if c.StopLoss < 0 || c.StopLoss > 1 {
		return validationErrorf("stop loss must be in (0, 1] or 0, got %v", c.StopLoss)
	}
	if c.TakeProfit < 0 || c.TakeProfit > 1 {
		return validationErrorf("take profit must be in (0, 1] or 0, got %v", c.TakeProfit)
	}
	return nil
}
