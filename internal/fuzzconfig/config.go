// Package fuzzconfig loads and reloads the tunables spec.md §6 lists
// as "values a test suite must be able to vary". Files are HuJSON
// (JSON-with-comments), overlaid by command-line flags, and can be
// watched for changes; Watcher hands each reloaded Config to a callback.
// cmd/fuzzctl's callback only logs the reload, so a running campaign
// keeps the configuration it started with.
package fuzzconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/tailscale/hujson"

	"github.com/raresmith/branchfuzz/internal/adwin"
	"github.com/raresmith/branchfuzz/internal/bandit"
	"github.com/raresmith/branchfuzz/internal/deterministic"
	"github.com/raresmith/branchfuzz/internal/fuzzone"
	"github.com/raresmith/branchfuzz/internal/havoc"
	"github.com/raresmith/branchfuzz/internal/rarebranch"
	"github.com/raresmith/branchfuzz/internal/trim"
)

// Config is the top-level tunable tree. JSON tags use the spec's own
// constant names so a hand-edited config file reads like the spec.
type Config struct {
	Seed int64 `json:"seed"`

	BanditKind      bandit.Kind `json:"bandit_kind"`
	OpBanditKind    bandit.Kind `json:"op_bandit_kind"`
	BatchBanditKind bandit.Kind `json:"batch_bandit_kind"`

	ArithMax      int `json:"ARITH_MAX"`
	HavocMin      int `json:"HAVOC_MIN"`
	HavocCycles   int `json:"HAVOC_CYCLES"`
	HavocBlkSmall int `json:"HAVOC_BLK_SMALL"`
	HavocBlkMed   int `json:"HAVOC_BLK_MEDIUM"`
	HavocBlkLarge int `json:"HAVOC_BLK_LARGE"`
	HavocBlkXL    int `json:"HAVOC_BLK_XL"`

	TrimMinBytes int `json:"TRIM_MIN_BYTES"`

	EffMinLen  int `json:"EFF_MIN_LEN"`
	EffMaxPerc int `json:"EFF_MAX_PERC"`

	UseAutoExtras int `json:"USE_AUTO_EXTRAS"`
	MinAutoExtra  int `json:"MIN_AUTO_EXTRA"`
	MaxAutoExtra  int `json:"MAX_AUTO_EXTRA"`
	MaxDictFile   int `json:"MAX_DICT_FILE"`

	SpliceCycles int `json:"SPLICE_CYCLES"`

	ADWINM                  int     `json:"ADWIN_M"`
	ADWINDelta              float64 `json:"ADWIN_DELTA"`
	ADWINMinElemToCheck     int     `json:"ADWIN_MIN_ELEM_TO_CHECK"`
	ADWINMinElemToStartDrop int     `json:"ADWIN_MIN_ELEM_TO_START_DROP"`
	ADWINDropInterval       int     `json:"ADWIN_DROP_INTERVAL"`

	DTSGamma float64 `json:"DTS_GAMMA"`
	DBEGamma float64 `json:"DBE_GAMMA"`

	KLUCBDelta float64 `json:"KLUCB_DELTA"`
	KLUCBEps   float64 `json:"KLUCB_EPS"`

	EXPAlpha float64 `json:"EXP_ALPHA"`
	EXPBeta  float64 `json:"EXP_BETA"`

	MaxRareBranches int  `json:"MAX_RARE_BRANCHES"`
	VanillaMode     bool `json:"vanilla_mode"`
	ShadowMode      bool `json:"shadow_mode"`
}

// Default matches the §6 defaults referenced throughout the spec.
func Default() Config {
	return Config{
		Seed:            1,
		BanditKind:      bandit.KindDiscountedTS,
		OpBanditKind:    bandit.KindDiscountedTS,
		BatchBanditKind: bandit.KindUniform,
		ArithMax:        35,
		HavocMin:        16,
		HavocCycles:     256,
		HavocBlkSmall:   32,
		HavocBlkMed:     128,
		HavocBlkLarge:   1500,
		HavocBlkXL:      32768,
		TrimMinBytes:    4,
		EffMinLen:       128,
		EffMaxPerc:      90,
		UseAutoExtras:   4,
		MinAutoExtra:    3,
		MaxAutoExtra:    32,
		MaxDictFile:     200,
		SpliceCycles:    5,

		ADWINM:                  5,
		ADWINDelta:              0.002,
		ADWINMinElemToCheck:     5,
		ADWINMinElemToStartDrop: 32,
		ADWINDropInterval:       32,

		DTSGamma: 0.999,
		DBEGamma: 0.999,

		KLUCBDelta: 1e-6,
		KLUCBEps:   1e-2,

		EXPAlpha: 3,
		EXPBeta:  256,

		MaxRareBranches: 128,
	}
}

// parse standardizes HuJSON data to plain JSON and unmarshals it over
// into: fields the file does not name keep into's current values, which
// is how LoadFile below layers a file over Default().
func parse(data []byte, into *Config) error {
	std, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("fuzzconfig: invalid HuJSON: %w", err)
	}
	return json.Unmarshal(std, into)
}

// LoadFile reads path (HuJSON) over Default(); a missing file is not an
// error, matching the teacher's env-file-optional convention.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("fuzzconfig: reading %s: %w", path, err)
	}
	if err := parse(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// BindFlags registers pflag overrides for the handful of options an
// operator is most likely to tweak per invocation; the full tunable set
// is reserved for the config file.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.Int64Var(&c.Seed, "seed", c.Seed, "PRNG seed")
	fs.IntVar(&c.HavocCycles, "havoc-cycles", c.HavocCycles, "HAVOC_CYCLES")
	fs.IntVar(&c.SpliceCycles, "splice-cycles", c.SpliceCycles, "SPLICE_CYCLES")
	fs.BoolVar(&c.VanillaMode, "vanilla", c.VanillaMode, "disable rare-branch targeting")
	fs.BoolVar(&c.ShadowMode, "shadow", c.ShadowMode, "run the untargeted pipeline alongside the targeted one")
	fs.Var(newBanditKindValue(&c.OpBanditKind), "op-bandit", "operator bandit strategy")
	fs.Var(newBanditKindValue(&c.BatchBanditKind), "batch-bandit", "batch-size bandit strategy")
}

// DeterministicConfig, HavocConfig, TrimConfig, RareBranchConfig, and
// ADWINConfig project this flat file onto the per-package Config types
// the core algorithm packages expect.
func (c Config) DeterministicConfig() deterministic.Config {
	return deterministic.Config{
		ArithMax:      c.ArithMax,
		MinAutoExtra:  c.MinAutoExtra,
		MaxAutoExtra:  c.MaxAutoExtra,
		MaxDictFile:   c.MaxDictFile,
		UseAutoExtras: c.UseAutoExtras,
		EffMinLen:     c.EffMinLen,
		EffMaxPerc:    c.EffMaxPerc,
	}
}

func (c Config) HavocConfig() havoc.Config {
	return havoc.Config{
		HavocMin:     c.HavocMin,
		HavocCycles:  c.HavocCycles,
		HavocMaxMult: 8000,
		Div:          1,
		BlockSmall:   c.HavocBlkSmall,
		BlockMedium:  c.HavocBlkMed,
		BlockLarge:   c.HavocBlkLarge,
		BlockXL:      c.HavocBlkXL,
		ArithMax:     c.ArithMax,
	}
}

func (c Config) TrimConfig() trim.Config {
	return trim.Config{MinBytes: c.TrimMinBytes}
}

func (c Config) RareBranchConfig() rarebranch.Config {
	return rarebranch.Config{MaxRareBranches: c.MaxRareBranches}
}

func (c Config) ADWINConfig() adwin.Config {
	return adwin.Config{
		M:                    c.ADWINM,
		Delta:                c.ADWINDelta,
		MinElemToCheck:       c.ADWINMinElemToCheck,
		MinElemToStartDrop:   c.ADWINMinElemToStartDrop,
		DropInterval:         c.ADWINDropInterval,
		UseAdaptiveResetting: true,
	}
}

func (c Config) BanditParams() bandit.Params {
	p := bandit.DefaultParams()
	p.ADWIN = c.ADWINConfig()
	p.DTSGamma = c.DTSGamma
	p.DBEGamma = c.DBEGamma
	p.KLUCB = bandit.KLUCBConfig{Delta: c.KLUCBDelta, Eps: c.KLUCBEps}
	p.EXP3PP = bandit.EXP3PPConfig{Alpha: c.EXPAlpha, Beta: c.EXPBeta}
	return p
}

func (c Config) FuzzOneConfig() fuzzone.Config {
	return fuzzone.Config{
		Deterministic: c.DeterministicConfig(),
		Havoc:         c.HavocConfig(),
		Trim:          c.TrimConfig(),
		SpliceCycles:  c.SpliceCycles,
		VanillaMode:   c.VanillaMode,
		ShadowMode:    c.ShadowMode,
	}
}
