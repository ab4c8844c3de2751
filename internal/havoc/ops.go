package havoc

import (
	"encoding/binary"

	"github.com/raresmith/branchfuzz/internal/branchmask"
	"github.com/raresmith/branchfuzz/internal/deterministic"
	"github.com/raresmith/branchfuzz/internal/rng"
)

// effectiveMask falls back to the untargeted mask once a structural op
// has changed the candidate's length mid-batch, since the branch mask
// built for the original seed no longer lines up position-for-position.
func effectiveMask(mask branchmask.Mask, length int) branchmask.Mask {
	if mask != nil && mask.Len() == length {
		return mask
	}
	return branchmask.Default(length)
}

func blockLen(cfg Config, r *rng.Source, avail int) int {
	if avail <= 0 {
		return 0
	}
	choices := []int{cfg.BlockSmall, cfg.BlockMedium, cfg.BlockLarge, cfg.BlockXL}
	n := choices[r.Intn(len(choices))]
	if n > avail {
		n = avail
	}
	if n < 1 {
		n = 1
	}
	return r.Intn(n) + 1
}

func randomToken(tokens []deterministic.Token, r *rng.Source) deterministic.Token {
	if len(tokens) == 0 {
		return nil
	}
	return tokens[r.Intn(len(tokens))]
}

// applyOnce applies op once to buf, returning the resulting buffer and
// whether a valid position existed. false means the caller hit the
// "sentinel" case (spec §4.9 step 3) and should stop stacking further
// applications this batch.
func applyOnce(op int, buf []byte, mask branchmask.Mask, in Input, cfg Config, r *rng.Source) ([]byte, bool) {
	m := effectiveMask(mask, len(buf))

	switch op {
	case OpBitFlip:
		pos := branchmask.ModifiablePosition(m, branchmask.BitOverwrite, 1, r)
		if !pos.Found {
			return buf, false
		}
		buf[pos.Byte] ^= 1 << uint(pos.BitOffset)
		return buf, true

	case OpInterest8:
		pos := branchmask.ModifiablePosition(m, branchmask.BitOverwrite, 8, r)
		if !pos.Found {
			return buf, false
		}
		buf[pos.Byte] = byte(deterministic.Interesting8[r.Intn(len(deterministic.Interesting8))])
		return buf, true

	case OpInterest16LE, OpInterest16BE:
		pos := branchmask.ModifiablePosition(m, branchmask.BitOverwrite, 16, r)
		if !pos.Found || pos.Byte+2 > len(buf) {
			return buf, false
		}
		v := uint16(deterministic.Interesting16[r.Intn(len(deterministic.Interesting16))])
		order := byteOrder(op == OpInterest16BE)
		order.PutUint16(buf[pos.Byte:], v)
		return buf, true

	case OpInterest32LE, OpInterest32BE:
		pos := branchmask.ModifiablePosition(m, branchmask.BitOverwrite, 32, r)
		if !pos.Found || pos.Byte+4 > len(buf) {
			return buf, false
		}
		v := uint32(deterministic.Interesting32[r.Intn(len(deterministic.Interesting32))])
		order := byteOrder(op == OpInterest32BE)
		order.PutUint32(buf[pos.Byte:], v)
		return buf, true

	case OpArith8:
		pos := branchmask.ModifiablePosition(m, branchmask.BitOverwrite, 8, r)
		if !pos.Found {
			return buf, false
		}
		delta := uint8(r.Intn(cfg.ArithMax) + 1)
		if r.Bool() {
			buf[pos.Byte] += delta
		} else {
			buf[pos.Byte] -= delta
		}
		return buf, true

	case OpArith16LE, OpArith16BE:
		pos := branchmask.ModifiablePosition(m, branchmask.BitOverwrite, 16, r)
		if !pos.Found || pos.Byte+2 > len(buf) {
			return buf, false
		}
		order := byteOrder(op == OpArith16BE)
		v := order.Uint16(buf[pos.Byte:])
		delta := uint16(r.Intn(cfg.ArithMax) + 1)
		if r.Bool() {
			v += delta
		} else {
			v -= delta
		}
		order.PutUint16(buf[pos.Byte:], v)
		return buf, true

	case OpArith32LE, OpArith32BE:
		pos := branchmask.ModifiablePosition(m, branchmask.BitOverwrite, 32, r)
		if !pos.Found || pos.Byte+4 > len(buf) {
			return buf, false
		}
		order := byteOrder(op == OpArith32BE)
		v := order.Uint32(buf[pos.Byte:])
		delta := uint32(r.Intn(cfg.ArithMax) + 1)
		if r.Bool() {
			v += delta
		} else {
			v -= delta
		}
		order.PutUint32(buf[pos.Byte:], v)
		return buf, true

	case OpRand8:
		pos := branchmask.ModifiablePosition(m, branchmask.BitOverwrite, 8, r)
		if !pos.Found {
			return buf, false
		}
		buf[pos.Byte] ^= byte(1 + r.Intn(255))
		return buf, true

	case OpCloneBytes:
		if len(buf) == 0 {
			return buf, false
		}
		dst := branchmask.InsertionPosition(m, r)
		if !dst.Found {
			return buf, false
		}
		n := blockLen(cfg, r, len(buf))
		src := r.Intn(len(buf))
		if src+n > len(buf) {
			n = len(buf) - src
		}
		chunk := append([]byte(nil), buf[src:src+n]...)
		return spliceInsert(buf, dst.Byte, chunk), true

	case OpInsertSameByte:
		dst := branchmask.InsertionPosition(m, r)
		if !dst.Found {
			return buf, false
		}
		n := blockLen(cfg, r, cfg.BlockMedium)
		chunk := make([]byte, n)
		fill := byte(r.UniformU32(256))
		for i := range chunk {
			chunk[i] = fill
		}
		return spliceInsert(buf, dst.Byte, chunk), true

	case OpOverwriteChunk:
		if len(buf) == 0 {
			return buf, false
		}
		n := blockLen(cfg, r, len(buf))
		pos := branchmask.ModifiablePosition(m, branchmask.BitOverwrite, n*8, r)
		if !pos.Found {
			return buf, false
		}
		src := r.Intn(len(buf) - n + 1)
		copy(buf[pos.Byte:pos.Byte+n], buf[src:src+n])
		return buf, true

	case OpOverwriteSameByte:
		if len(buf) == 0 {
			return buf, false
		}
		n := blockLen(cfg, r, len(buf))
		pos := branchmask.ModifiablePosition(m, branchmask.BitOverwrite, n*8, r)
		if !pos.Found {
			return buf, false
		}
		fill := byte(r.UniformU32(256))
		for i := pos.Byte; i < pos.Byte+n; i++ {
			buf[i] = fill
		}
		return buf, true

	case OpDeleteBytes:
		if len(buf) <= 1 {
			return buf, false
		}
		n := blockLen(cfg, r, len(buf)-1)
		pos := branchmask.ModifiablePosition(m, branchmask.BitDelete, n*8, r)
		if !pos.Found {
			return buf, false
		}
		out := make([]byte, 0, len(buf)-n)
		out = append(out, buf[:pos.Byte]...)
		out = append(out, buf[pos.Byte+n:]...)
		return out, true

	case OpOverwriteExtra:
		tok := randomToken(in.UserExtras, r)
		return overwriteToken(buf, m, tok, r)

	case OpInsertExtra:
		tok := randomToken(in.UserExtras, r)
		return insertToken(buf, m, tok, r)

	case OpOverwriteAutoExtra:
		tok := randomToken(in.AutoExtras, r)
		return overwriteToken(buf, m, tok, r)

	case OpInsertAutoExtra:
		tok := randomToken(in.AutoExtras, r)
		return insertToken(buf, m, tok, r)

	case OpSpliceOverwrite:
		if len(in.Peer) == 0 {
			return buf, false
		}
		n := blockLen(cfg, r, min(len(buf), len(in.Peer)))
		pos := branchmask.ModifiablePosition(m, branchmask.BitOverwrite, n*8, r)
		if !pos.Found {
			return buf, false
		}
		srcStart := r.Intn(len(in.Peer) - n + 1)
		copy(buf[pos.Byte:pos.Byte+n], in.Peer[srcStart:srcStart+n])
		return buf, true

	case OpSpliceInsert:
		if len(in.Peer) == 0 {
			return buf, false
		}
		dst := branchmask.InsertionPosition(m, r)
		if !dst.Found {
			return buf, false
		}
		n := blockLen(cfg, r, len(in.Peer))
		srcStart := r.Intn(len(in.Peer) - n + 1)
		chunk := append([]byte(nil), in.Peer[srcStart:srcStart+n]...)
		return spliceInsert(buf, dst.Byte, chunk), true

	default:
		return buf, false
	}
}

func overwriteToken(buf []byte, m branchmask.Mask, tok deterministic.Token, r *rng.Source) ([]byte, bool) {
	if len(tok) == 0 || len(tok) > len(buf) {
		return buf, false
	}
	pos := branchmask.ModifiablePosition(m, branchmask.BitOverwrite, len(tok)*8, r)
	if !pos.Found {
		return buf, false
	}
	copy(buf[pos.Byte:], tok)
	return buf, true
}

func insertToken(buf []byte, m branchmask.Mask, tok deterministic.Token, r *rng.Source) ([]byte, bool) {
	if len(tok) == 0 {
		return buf, false
	}
	dst := branchmask.InsertionPosition(m, r)
	if !dst.Found {
		return buf, false
	}
	return spliceInsert(buf, dst.Byte, tok), true
}

func spliceInsert(buf []byte, pos int, chunk []byte) []byte {
	out := make([]byte, 0, len(buf)+len(chunk))
	out = append(out, buf[:pos]...)
	out = append(out, chunk...)
	out = append(out, buf[pos:]...)
	return out
}

func byteOrder(bigEndian bool) binary.ByteOrder {
	if bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
