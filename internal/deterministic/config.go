package deterministic

// Config holds the stage tunables named in spec.md §6.
type Config struct {
	ArithMax      int
	MinAutoExtra  int
	MaxAutoExtra  int
	MaxDictFile   int
	UseAutoExtras int // number of top auto-dict entries extras_AO tries
	EffMinLen     int
	EffMaxPerc    int
}

func DefaultConfig() Config {
	return Config{
		ArithMax:      35,
		MinAutoExtra:  3,
		MaxAutoExtra:  32,
		MaxDictFile:   200,
		UseAutoExtras: 4,
		EffMinLen:     128,
		EffMaxPerc:    90,
	}
}
