package deterministic

// Token is one dictionary entry: a byte string injected verbatim during
// the extras stages (spec §4.8 extras_UO/UI/AO).
type Token []byte

// Dictionary holds the user-supplied and auto-mined token sets. Auto
// entries are capped by MaxDictFile, oldest evicted first, matching the
// "bounded growth" resource note in spec §5.
type Dictionary struct {
	User []Token
	Auto []Token
	cfg  Config
}

func NewDictionary(cfg Config) *Dictionary {
	return &Dictionary{cfg: cfg}
}

// AddAuto records a candidate token mined during flip1 (spec §4.8 step
// 1), subject to the configured length bounds and file cap. Duplicates
// are ignored.
func (d *Dictionary) AddAuto(tok Token) {
	if len(tok) < d.cfg.MinAutoExtra || len(tok) > d.cfg.MaxAutoExtra {
		return
	}
	for _, existing := range d.Auto {
		if string(existing) == string(tok) {
			return
		}
	}
	cp := append(Token(nil), tok...)
	if len(d.Auto) >= d.cfg.MaxDictFile {
		d.Auto = d.Auto[1:]
	}
	d.Auto = append(d.Auto, cp)
}

// TopAuto returns up to n auto-mined tokens for extras_AO (spec §4.8
// step 8: "top USE_AUTO_EXTRAS entries").
func (d *Dictionary) TopAuto(n int) []Token {
	if n > len(d.Auto) {
		n = len(d.Auto)
	}
	return d.Auto[:n]
}
