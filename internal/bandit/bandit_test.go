package bandit

import (
	"math"
	"testing"

	"github.com/raresmith/branchfuzz/internal/rng"
	"github.com/stretchr/testify/assert"
)

func TestUniformSanity(t *testing.T) {
	u := NewUniform(3, rng.New(1))
	counts := make([]int, 3)
	for i := 0; i < 30000; i++ {
		a := u.SelectArm(nil)
		counts[a]++
		u.AddReward(a, 0)
	}
	// 30000 pulls over 3 arms, p=1/3: sigma = sqrt(n*p*(1-p)) ~ 81.6
	mean := 10000.0
	sigma := math.Sqrt(30000 * (1.0 / 3) * (2.0 / 3))
	for i, c := range counts {
		if math.Abs(float64(c)-mean) > 3*sigma {
			t.Fatalf("arm %d count %d outside 3 sigma of %v (sigma=%v)", i, c, mean, sigma)
		}
	}
}

func TestUCB1Bias(t *testing.T) {
	u := NewUCB1(2)
	r := rng.New(42)
	means := []float64{0.2, 0.8}
	counts := make([]int, 2)
	for i := 0; i < 10000; i++ {
		a := u.SelectArm(nil)
		counts[a]++
		reward := 0.0
		if r.UniformReal() < means[a] {
			reward = 1
		}
		u.AddReward(a, reward)
	}
	assert.Greater(t, counts[1], 8000, "expected UCB1 to favor the better arm after 10000 pulls")
}

func TestMaskIsNeverViolated(t *testing.T) {
	r := rng.New(3)
	strategies := map[Kind]Strategy{}
	for _, k := range []Kind{KindUniform, KindUCB1, KindKLUCB, KindThompson, KindADWINThompson, KindDiscountedTS, KindDiscountedBE, KindEXP3IX, KindEXP3PP} {
		s, err := New(k, 5, DefaultParams(), r)
		if err != nil {
			t.Fatal(err)
		}
		strategies[k] = s
	}

	mask := []bool{true, false, true, false, true}
	for k, s := range strategies {
		for i := 0; i < 200; i++ {
			a := s.SelectArm(mask)
			if a < 0 || a >= 5 || !mask[a] {
				t.Fatalf("%s: SelectArm returned masked arm %d", k, a)
			}
			s.AddReward(a, float64(i%2))
		}
	}
}

func TestEXP3IXWeightsSumToOne(t *testing.T) {
	e := NewEXP3IX(4, rng.New(5))
	for i := 0; i < 500; i++ {
		a := e.SelectArm(nil)
		e.AddReward(a, float64(i%3)/2.0)
		total := 0.0
		for j := 0; j < 4; j++ {
			total += e.Weight(j)
		}
		if math.Abs(total-1) > 1e-8 {
			t.Fatalf("weights sum to %v after round %d, want ~1", total, i)
		}
	}
}

func TestEXP3PPWeightsSumToOne(t *testing.T) {
	e := NewEXP3PP(4, DefaultEXP3PPConfig(), rng.New(6))
	for i := 0; i < 500; i++ {
		a := e.SelectArm(nil)
		e.AddReward(a, float64(i%3)/2.0)
		total := 0.0
		for j := 0; j < 4; j++ {
			total += e.Weight(j)
		}
		if math.Abs(total-1) > 1e-8 {
			t.Fatalf("weights sum to %v after round %d, want ~1", total, i)
		}
	}
}

func TestKLUCBKnownValues(t *testing.T) {
	k := NewKLUCB(1, DefaultKLUCBConfig())
	k.t = 100
	q := k.klucbBound(0.5, 10)
	if q < 0.5 || q > 1 {
		t.Fatalf("expected klucb bound in [0.5,1], got %v", q)
	}
}

func TestBucketFor(t *testing.T) {
	cases := map[int]int{0: 0, 100: 0, 101: 1, 1000: 1, 1001: 2, 100000: 3, 100001: 4}
	for n, want := range cases {
		if got := BucketFor(n); got != want {
			t.Errorf("BucketFor(%d) = %d, want %d", n, got, want)
		}
	}
}
