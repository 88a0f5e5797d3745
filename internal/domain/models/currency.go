package models

const (
	// BaseCurrency is the quote currency every rate is expressed against.
	BaseCurrency = "USD"

	// HistoryDays is the length of a synthesized series, ending today.
	HistoryDays = 30

	// HorizonDays is how far past the last historical day the trend is extrapolated.
	HorizonDays = 7

	// StableThresholdPct is the absolute change (in percent) under which a forecast is "Stable".
	StableThresholdPct = 0.5
)

var supportedCurrencies = [...]string{"EUR", "GBP", "JPY", "AUD", "RON"}

// CurrencySet is the immutable set of currencies predictions are offered for.
type CurrencySet struct {
	base  string
	codes []string
	index map[string]int
}

// NewCurrencySet builds a set quoted against base, keeping the declared order of codes.
func NewCurrencySet(base string, codes ...string) CurrencySet {
	s := CurrencySet{
		base:  base,
		codes: make([]string, 0, len(codes)),
		index: make(map[string]int, len(codes)),
	}
	for _, c := range codes {
		if _, dup := s.index[c]; dup {
			continue
		}
		s.index[c] = len(s.codes)
		s.codes = append(s.codes, c)
	}
	return s
}

// DefaultCurrencySet returns the build-time set: EUR, GBP, JPY, AUD, RON against USD.
func DefaultCurrencySet() CurrencySet {
	return NewCurrencySet(BaseCurrency, supportedCurrencies[:]...)
}

// Base returns the quote currency.
func (s CurrencySet) Base() string { return s.base }

// Codes returns a copy of the supported codes in declared order.
func (s CurrencySet) Codes() []string {
	out := make([]string, len(s.codes))
	copy(out, s.codes)
	return out
}

// Len returns the number of supported codes.
func (s CurrencySet) Len() int { return len(s.codes) }

// Contains reports whether code is supported. Matching is exact (case-sensitive).
func (s CurrencySet) Contains(code string) bool {
	_, ok := s.index[code]
	return ok
}
