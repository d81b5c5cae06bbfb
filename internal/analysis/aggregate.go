package analysis

// BlunderThreshold is the centipawn loss at or above which a move counts
// as a blunder.
const BlunderThreshold = 100

// CommonBlunderCount is how many moves Aggregate reports.
const CommonBlunderCount = 5

// BlunderCount is how often a move was a blunder.
type BlunderCount struct {
	Move  string
	Count int
}

// Summary is statistics across several analysed games.
type Summary struct {
	AverageLoss        float64
	MostCommonBlunders []BlunderCount
	Games              int
	Moves              int
}

// Aggregate summarises per-game move records. The average is the signed
// mean loss over every move; blunders are counted by the UCI move played
// and ordered by count, ties broken by first appearance.
func Aggregate(games [][]MoveRecord) (*Summary, error) {
	if len(games) == 0 {
		return nil, ErrNoData
	}

	var (
		total  int
		moves  int
		counts = make(map[string]int)
		order  []string
	)
	for _, g := range games {
		for _, rec := range g {
			total += rec.CentipawnLoss
			moves++
			if rec.CentipawnLoss < BlunderThreshold {
				continue
			}
			if _, seen := counts[rec.Move]; !seen {
				order = append(order, rec.Move)
			}
			counts[rec.Move]++
		}
	}

	s := &Summary{Games: len(games), Moves: moves}
	if moves > 0 {
		s.AverageLoss = float64(total) / float64(moves)
	}
	s.MostCommonBlunders = mostCommon(order, counts, CommonBlunderCount)
	return s, nil
}

// mostCommon orders keys by descending count; order holds first-seen
// order and breaks ties.
func mostCommon(order []string, counts map[string]int, n int) []BlunderCount {
	out := make([]BlunderCount, 0, len(order))
	for _, m := range order {
		out = append(out, BlunderCount{Move: m, Count: counts[m]})
	}
	// insertion sort keeps ties stable and inputs are small
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Count > out[j-1].Count; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if len(out) > n {
		out = out[:n]
	}
	return out
}
