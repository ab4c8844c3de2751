package deterministic

// Interesting value tables (spec.md §4.8 interest8/16/32), injected at
// byte/word/dword granularity during the interest stages. These are the
// values most likely to trip off-by-one and boundary conditions: the
// signed extremes, zero, small powers of two, and common buffer sizes.
var (
	Interesting8 = []int8{
		-128, -1, 0, 1, 16, 32, 64, 100, 127,
	}
	Interesting16 = []int16{
		-32768, -129, 128, 255, 256, 512, 1000, 1024, 4096, 32767,
	}
	Interesting32 = []int32{
		-2147483648, -100663046, -32769, 32768, 65535, 65536, 100663045, 2147483647,
	}
)
