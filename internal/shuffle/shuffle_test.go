package shuffle

import (
	"slices"
	"testing"
)

func TestPermuteIsReproducible(t *testing.T) {
	for _, seed := range []int64{0, 1, 42, -7, 1 << 40} {
		a := Permute(seed, 20)
		b := Permute(seed, 20)
		if !slices.Equal(a, b) {
			t.Errorf("seed %d: permutations differ: %v vs %v", seed, a, b)
		}
	}
}

func TestPermuteIsAPermutation(t *testing.T) {
	p := Permute(99, 50)
	seen := make(map[int]bool, len(p))
	for _, v := range p {
		if v < 0 || v >= 50 {
			t.Fatalf("value %d out of range", v)
		}
		if seen[v] {
			t.Fatalf("value %d repeated", v)
		}
		seen[v] = true
	}
	if len(seen) != 50 {
		t.Fatalf("expected 50 distinct values, got %d", len(seen))
	}
}

func TestPermuteEdgeSizes(t *testing.T) {
	if got := Permute(1, 0); len(got) != 0 {
		t.Errorf("n=0: got %v", got)
	}
	if got := Permute(1, 1); !slices.Equal(got, []int{0}) {
		t.Errorf("n=1: got %v", got)
	}
}

func TestDifferentSeedsDiffer(t *testing.T) {
	// Adjacent seeds are the common case (seed + item position).
	const n = 8
	distinct := 0
	base := Permute(1000, n)
	for s := int64(1001); s < 1021; s++ {
		if !slices.Equal(base, Permute(s, n)) {
			distinct++
		}
	}
	if distinct < 19 {
		t.Errorf("only %d of 20 neighbouring seeds produced a different order", distinct)
	}
}

func TestIntnUniform(t *testing.T) {
	g := New(7)
	const n, draws = 5, 50000
	var counts [n]int
	for i := 0; i < draws; i++ {
		counts[g.Intn(n)]++
	}
	want := draws / n
	for k, c := range counts {
		if c < want*9/10 || c > want*11/10 {
			t.Errorf("bucket %d: %d draws, expected about %d", k, c, want)
		}
	}
}

func TestIntnPanicsOnNonPositive(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	New(1).Intn(0)
}
