package paddle

import "math"

// blankIndex is the CTC blank class of PaddleOCR recognition heads.
const blankIndex = 0

// decodedLine holds the greedy CTC path for one text line.
type decodedLine struct {
	Indices []int
	Probs   []float64
}

// argmax returns the index of the largest value.
func argmax(v []float32) int {
	if len(v) == 0 {
		return -1
	}
	idx := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[idx] {
			idx = i
		}
	}
	return idx
}

// probOf returns the softmax probability of v[idx]. Outputs that already sum
// to one are read as probabilities.
func probOf(v []float32, idx int) float64 {
	if idx < 0 || idx >= len(v) {
		return 0
	}
	var sum float64
	lo, hi := v[0], v[0]
	for _, x := range v {
		sum += float64(x)
		lo = min(lo, x)
		hi = max(hi, x)
	}
	if sum > 0.99 && sum < 1.01 && lo >= 0 && hi <= 1 {
		return float64(v[idx])
	}
	var denom float64
	for _, x := range v {
		denom += math.Exp(float64(x - hi))
	}
	if denom == 0 {
		return 0
	}
	return math.Exp(float64(v[idx]-hi)) / denom
}

// collapse drops blanks and merges repeated classes.
func collapse(indices []int, probs []float64) ([]int, []float64) {
	outIdx := make([]int, 0, len(indices))
	outProb := make([]float64, 0, len(indices))
	prev := -1
	for i, idx := range indices {
		if idx == blankIndex {
			prev = idx
			continue
		}
		if idx == prev {
			continue
		}
		outIdx = append(outIdx, idx)
		outProb = append(outProb, probs[i])
		prev = idx
	}
	return outIdx, outProb
}

// classesFirst guesses whether a [N, X, Y] output is [N, C, T].
func classesFirst(shape []int64, classes int) bool {
	if len(shape) < 3 {
		return false
	}
	return int(shape[1]) == classes && int(shape[2]) != classes
}

// decodeGreedy runs greedy CTC decoding over [N, T, C] or [N, C, T] logits
// and returns the collapsed path of every batch entry.
func decodeGreedy(logits []float32, shape []int64, classes int) []decodedLine {
	if len(shape) < 3 {
		return nil
	}
	n := int(shape[0])
	first := classesFirst(shape, classes)
	var tDim, cDim int
	if first {
		cDim, tDim = int(shape[1]), int(shape[2])
	} else {
		tDim, cDim = int(shape[1]), int(shape[2])
	}
	if n <= 0 || tDim <= 0 || cDim <= 0 || len(logits) < n*tDim*cDim {
		return nil
	}

	out := make([]decodedLine, n)
	step := make([]float32, cDim)
	for b := range n {
		base := b * tDim * cDim
		indices := make([]int, tDim)
		probs := make([]float64, tDim)
		for t := range tDim {
			var cls []float32
			if first {
				for k := range cDim {
					step[k] = logits[base+k*tDim+t]
				}
				cls = step
			} else {
				off := base + t*cDim
				cls = logits[off : off+cDim]
			}
			idx := argmax(cls)
			indices[t] = idx
			probs[t] = probOf(cls, idx)
		}
		idx, pr := collapse(indices, probs)
		out[b] = decodedLine{Indices: idx, Probs: pr}
	}
	return out
}

// meanProb averages per-character probabilities; 0 when empty.
func meanProb(p []float64) float64 {
	if len(p) == 0 {
		return 0
	}
	var s float64
	for _, v := range p {
		s += v
	}
	return s / float64(len(p))
}
