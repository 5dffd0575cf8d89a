package compose

// Score rates how much context backed a reply, on [0, 1]. The base covers
// a bare generation; each extra signal adds a fixed share:
//
//	+0.20 model generation succeeded (vs. canned fallback)
//	+0.10 comment analysis was available
//	+0.10 scaled by semantic matches, saturating at 3
//	+0.05 generation stopped cleanly rather than hitting the token cap
func Score(generated, hasAnalysis bool, matches int, cleanStop bool) float64 {
	score := 0.7
	if generated {
		score += 0.2
	}
	if hasAnalysis {
		score += 0.1
	}
	if matches > 3 {
		matches = 3
	}
	if matches > 0 {
		score += 0.1 * float64(matches) / 3
	}
	if cleanStop {
		score += 0.05
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
