// Package deterministic implements the walking bit-flip, arithmetic,
// interesting-value, and dictionary stages of spec.md §4.8: the 20% of
// the mutation budget that probes every offset systematically before
// havoc takes over.
package deterministic

import (
	"context"
	"encoding/binary"

	"github.com/raresmith/branchfuzz/internal/branchmask"
	"github.com/raresmith/branchfuzz/internal/executor"
)

// StageResult summarizes one stage's run for the driver's stage-counter
// bookkeeping (spec §4.8: "pre-read orig_hit_count ... post-read delta is
// attributed to the stage").
type StageResult struct {
	Executions int
}

// Runner drives the deterministic stages against one seed buffer.
type Runner struct {
	Exec executor.Executor
	Cfg  Config
}

func NewRunner(exec executor.Executor, cfg Config) *Runner {
	return &Runner{Exec: exec, Cfg: cfg}
}

func overwriteAllowed(mask branchmask.Mask, pos, width int) bool {
	if mask == nil {
		return true
	}
	for i := pos; i < pos+width; i++ {
		if !mask.Test(i, branchmask.BitOverwrite) {
			return false
		}
	}
	return true
}

func (r *Runner) run(ctx context.Context, buf []byte) (executor.RunResult, error) {
	return r.Exec.Run(ctx, buf)
}

// Flip1 walks every bit, flipping it for one execution, and mines the
// auto-dictionary along the way (spec §4.8 step 1): every 8th flip
// hashes the resulting trace, and a run of byte positions whose hash
// differs from the baseline becomes a candidate token.
func (r *Runner) Flip1(ctx context.Context, buf []byte, mask branchmask.Mask, eff *EffectorMap, dict *Dictionary) (StageResult, error) {
	res := StageResult{}
	if len(buf) == 0 {
		return res, nil
	}
	baseRes, err := r.run(ctx, buf)
	if err != nil {
		return res, err
	}
	baseHash := r.Exec.ExecCksum(baseRes.Trace)

	var pending []byte
	pendingStart := -1
	flush := func() {
		if len(pending) > 0 {
			dict.AddAuto(append(Token(nil), pending...))
		}
		pending = nil
		pendingStart = -1
	}

	totalBits := len(buf) * 8
	for i := 0; i < totalBits; i++ {
		byteIdx := i / 8
		bitIdx := uint(i % 8)
		if eff != nil && !eff.IsEffective(byteIdx) {
			continue
		}
		if mask != nil && !mask.Test(byteIdx, branchmask.BitOverwrite) {
			continue
		}

		buf[byteIdx] ^= 1 << bitIdx
		rr, err := r.run(ctx, buf)
		buf[byteIdx] ^= 1 << bitIdx
		if err != nil {
			return res, err
		}
		res.Executions++

		if i%8 == 7 {
			hash := r.Exec.ExecCksum(rr.Trace)
			if hash != baseHash {
				if pendingStart == -1 {
					pendingStart = byteIdx
				}
				pending = append(pending, buf[byteIdx])
			} else {
				flush()
			}
		}
	}
	flush()
	return res, nil
}

// Flip2 and Flip4 walk 2-bit and 4-bit windows within each byte.
func (r *Runner) flipWindow(ctx context.Context, buf []byte, mask branchmask.Mask, eff *EffectorMap, width uint) (StageResult, error) {
	res := StageResult{}
	windowMask := byte(1<<width - 1)
	for byteIdx := range buf {
		if eff != nil && !eff.IsEffective(byteIdx) {
			continue
		}
		if mask != nil && !mask.Test(byteIdx, branchmask.BitOverwrite) {
			continue
		}
		for shift := uint(0); shift+width <= 8; shift++ {
			buf[byteIdx] ^= windowMask << shift
			if _, err := r.run(ctx, buf); err != nil {
				buf[byteIdx] ^= windowMask << shift
				return res, err
			}
			buf[byteIdx] ^= windowMask << shift
			res.Executions++
		}
	}
	return res, nil
}

func (r *Runner) Flip2(ctx context.Context, buf []byte, mask branchmask.Mask, eff *EffectorMap) (StageResult, error) {
	return r.flipWindow(ctx, buf, mask, eff, 2)
}

func (r *Runner) Flip4(ctx context.Context, buf []byte, mask branchmask.Mask, eff *EffectorMap) (StageResult, error) {
	return r.flipWindow(ctx, buf, mask, eff, 4)
}

// Flip8 XORs each byte with 0xFF and populates the effector map: a
// chunk stays effective only if some byte inside it changed the
// coverage checksum (spec §4.8 step 2).
func (r *Runner) Flip8(ctx context.Context, buf []byte, mask branchmask.Mask, eff *EffectorMap) (StageResult, error) {
	res := StageResult{}
	if len(buf) == 0 {
		return res, nil
	}
	baseRes, err := r.run(ctx, buf)
	if err != nil {
		return res, err
	}
	baseHash := r.Exec.ExecCksum(baseRes.Trace)

	chunkChanged := make([]bool, eff.NumChunks())
	for byteIdx := range buf {
		if mask != nil && !mask.Test(byteIdx, branchmask.BitOverwrite) {
			continue
		}
		buf[byteIdx] ^= 0xFF
		rr, err := r.run(ctx, buf)
		buf[byteIdx] ^= 0xFF
		if err != nil {
			return res, err
		}
		res.Executions++
		if r.Exec.ExecCksum(rr.Trace) != baseHash {
			chunkChanged[eff.chunkOf(byteIdx)] = true
		}
	}
	for c, changed := range chunkChanged {
		if !changed {
			eff.effective[c] = false
		}
	}
	return res, nil
}

// Flip16 and Flip32 require every involved chunk to still be flagged
// effective and, in rare-branch mode, every involved byte to be
// overwrite-safe (spec §4.8 step 4).
func (r *Runner) Flip16(ctx context.Context, buf []byte, mask branchmask.Mask, eff *EffectorMap) (StageResult, error) {
	res := StageResult{}
	for pos := 0; pos+2 <= len(buf); pos++ {
		if eff != nil && !eff.RangeEffective(pos, 2) {
			continue
		}
		if !overwriteAllowed(mask, pos, 2) {
			continue
		}
		v := binary.LittleEndian.Uint16(buf[pos:])
		binary.LittleEndian.PutUint16(buf[pos:], v^0xFFFF)
		if _, err := r.run(ctx, buf); err != nil {
			binary.LittleEndian.PutUint16(buf[pos:], v)
			return res, err
		}
		binary.LittleEndian.PutUint16(buf[pos:], v)
		res.Executions++
	}
	return res, nil
}

func (r *Runner) Flip32(ctx context.Context, buf []byte, mask branchmask.Mask, eff *EffectorMap) (StageResult, error) {
	res := StageResult{}
	for pos := 0; pos+4 <= len(buf); pos++ {
		if eff != nil && !eff.RangeEffective(pos, 4) {
			continue
		}
		if !overwriteAllowed(mask, pos, 4) {
			continue
		}
		v := binary.LittleEndian.Uint32(buf[pos:])
		binary.LittleEndian.PutUint32(buf[pos:], v^0xFFFFFFFF)
		if _, err := r.run(ctx, buf); err != nil {
			binary.LittleEndian.PutUint32(buf[pos:], v)
			return res, err
		}
		binary.LittleEndian.PutUint32(buf[pos:], v)
		res.Executions++
	}
	return res, nil
}

// Arith8 tries old±delta for delta in [1, ArithMax], skipping
// substitutions a bitflip stage would already reach.
func (r *Runner) Arith8(ctx context.Context, buf []byte, mask branchmask.Mask, eff *EffectorMap) (StageResult, error) {
	res := StageResult{}
	for pos := range buf {
		if eff != nil && !eff.IsEffective(pos) {
			continue
		}
		if !overwriteAllowed(mask, pos, 1) {
			continue
		}
		orig := buf[pos]
		for delta := 1; delta <= r.Cfg.ArithMax; delta++ {
			for _, nv := range [2]uint8{orig + uint8(delta), orig - uint8(delta)} {
				if couldBeBitflip(uint32(orig ^ nv)) {
					continue
				}
				buf[pos] = nv
				if _, err := r.run(ctx, buf); err != nil {
					buf[pos] = orig
					return res, err
				}
				buf[pos] = orig
				res.Executions++
			}
		}
	}
	return res, nil
}

func (r *Runner) arith16At(ctx context.Context, buf []byte, pos int, order binary.ByteOrder) (StageResult, error) {
	res := StageResult{}
	orig := order.Uint16(buf[pos:])
	for delta := 1; delta <= r.Cfg.ArithMax; delta++ {
		for _, nv := range [2]uint16{orig + uint16(delta), orig - uint16(delta)} {
			if couldBeBitflip(uint32(orig ^ nv)) {
				continue
			}
			order.PutUint16(buf[pos:], nv)
			if _, err := r.run(ctx, buf); err != nil {
				order.PutUint16(buf[pos:], orig)
				return res, err
			}
			order.PutUint16(buf[pos:], orig)
			res.Executions++
		}
	}
	return res, nil
}

// Arith16 covers both endianness variants per position (spec §4.8
// step 5).
func (r *Runner) Arith16(ctx context.Context, buf []byte, mask branchmask.Mask, eff *EffectorMap) (StageResult, error) {
	res := StageResult{}
	for pos := 0; pos+2 <= len(buf); pos++ {
		if eff != nil && !eff.RangeEffective(pos, 2) {
			continue
		}
		if !overwriteAllowed(mask, pos, 2) {
			continue
		}
		for _, order := range [2]binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
			sub, err := r.arith16At(ctx, buf, pos, order)
			res.Executions += sub.Executions
			if err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

func (r *Runner) arith32At(ctx context.Context, buf []byte, pos int, order binary.ByteOrder) (StageResult, error) {
	res := StageResult{}
	orig := order.Uint32(buf[pos:])
	for delta := 1; delta <= r.Cfg.ArithMax; delta++ {
		for _, nv := range [2]uint32{orig + uint32(delta), orig - uint32(delta)} {
			if couldBeBitflip(orig ^ nv) {
				continue
			}
			order.PutUint32(buf[pos:], nv)
			if _, err := r.run(ctx, buf); err != nil {
				order.PutUint32(buf[pos:], orig)
				return res, err
			}
			order.PutUint32(buf[pos:], orig)
			res.Executions++
		}
	}
	return res, nil
}

func (r *Runner) Arith32(ctx context.Context, buf []byte, mask branchmask.Mask, eff *EffectorMap) (StageResult, error) {
	res := StageResult{}
	for pos := 0; pos+4 <= len(buf); pos++ {
		if eff != nil && !eff.RangeEffective(pos, 4) {
			continue
		}
		if !overwriteAllowed(mask, pos, 4) {
			continue
		}
		for _, order := range [2]binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
			sub, err := r.arith32At(ctx, buf, pos, order)
			res.Executions += sub.Executions
			if err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// Interest8 injects each interesting-8 constant at every position,
// skipping ones a bitflip or arithmetic stage already covers.
func (r *Runner) Interest8(ctx context.Context, buf []byte, mask branchmask.Mask, eff *EffectorMap) (StageResult, error) {
	res := StageResult{}
	for pos := range buf {
		if eff != nil && !eff.IsEffective(pos) {
			continue
		}
		if !overwriteAllowed(mask, pos, 1) {
			continue
		}
		orig := buf[pos]
		for _, iv := range Interesting8 {
			nv := uint8(iv)
			if couldBeBitflip(uint32(orig^nv)) || couldBeArith8(orig, nv, r.Cfg.ArithMax) {
				continue
			}
			buf[pos] = nv
			if _, err := r.run(ctx, buf); err != nil {
				buf[pos] = orig
				return res, err
			}
			buf[pos] = orig
			res.Executions++
		}
	}
	return res, nil
}

func (r *Runner) Interest16(ctx context.Context, buf []byte, mask branchmask.Mask, eff *EffectorMap) (StageResult, error) {
	res := StageResult{}
	for pos := 0; pos+2 <= len(buf); pos++ {
		if eff != nil && !eff.RangeEffective(pos, 2) {
			continue
		}
		if !overwriteAllowed(mask, pos, 2) {
			continue
		}
		for _, order := range [2]binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
			orig := order.Uint16(buf[pos:])
			for _, iv := range Interesting16 {
				nv := uint16(iv)
				if couldBeBitflip(uint32(orig^nv)) || couldBeArith16(orig, nv, r.Cfg.ArithMax) || couldBeInterest8(uint8(nv)) {
					continue
				}
				order.PutUint16(buf[pos:], nv)
				if _, err := r.run(ctx, buf); err != nil {
					order.PutUint16(buf[pos:], orig)
					return res, err
				}
				order.PutUint16(buf[pos:], orig)
				res.Executions++
			}
		}
	}
	return res, nil
}

func (r *Runner) Interest32(ctx context.Context, buf []byte, mask branchmask.Mask, eff *EffectorMap) (StageResult, error) {
	res := StageResult{}
	for pos := 0; pos+4 <= len(buf); pos++ {
		if eff != nil && !eff.RangeEffective(pos, 4) {
			continue
		}
		if !overwriteAllowed(mask, pos, 4) {
			continue
		}
		for _, order := range [2]binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
			orig := order.Uint32(buf[pos:])
			for _, iv := range Interesting32 {
				nv := uint32(iv)
				if couldBeBitflip(orig^nv) || couldBeArith32(orig, nv, r.Cfg.ArithMax) || couldBeInterest16(uint16(nv)) {
					continue
				}
				order.PutUint32(buf[pos:], nv)
				if _, err := r.run(ctx, buf); err != nil {
					order.PutUint32(buf[pos:], orig)
					return res, err
				}
				order.PutUint32(buf[pos:], orig)
				res.Executions++
			}
		}
	}
	return res, nil
}

// ExtrasOverwrite (extras_UO / extras_AO) tries each token overwritten
// at every position it fits.
func (r *Runner) ExtrasOverwrite(ctx context.Context, buf []byte, mask branchmask.Mask, tokens []Token) (StageResult, error) {
	res := StageResult{}
	for _, tok := range tokens {
		if len(tok) == 0 || len(tok) > len(buf) {
			continue
		}
		for pos := 0; pos+len(tok) <= len(buf); pos++ {
			if !overwriteAllowed(mask, pos, len(tok)) {
				continue
			}
			orig := append([]byte(nil), buf[pos:pos+len(tok)]...)
			copy(buf[pos:], tok)
			if _, err := r.run(ctx, buf); err != nil {
				copy(buf[pos:], orig)
				return res, err
			}
			copy(buf[pos:], orig)
			res.Executions++
		}
	}
	return res, nil
}

// ExtrasInsert (extras_UI) tries each token spliced in at every
// insertion-safe position.
func (r *Runner) ExtrasInsert(ctx context.Context, buf []byte, mask branchmask.Mask, tokens []Token) ([]byte, StageResult, error) {
	res := StageResult{}
	for _, tok := range tokens {
		if len(tok) == 0 {
			continue
		}
		for pos := 0; pos <= len(buf); pos++ {
			if mask != nil && !mask.Test(pos, branchmask.BitInsert) {
				continue
			}
			candidate := make([]byte, 0, len(buf)+len(tok))
			candidate = append(candidate, buf[:pos]...)
			candidate = append(candidate, tok...)
			candidate = append(candidate, buf[pos:]...)
			if _, err := r.run(ctx, candidate); err != nil {
				return buf, res, err
			}
			res.Executions++
		}
	}
	return buf, res, nil
}
