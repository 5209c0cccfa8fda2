package luckypick

// PrizeTier is one winning level. Amount is in cents (分).
type PrizeTier struct {
	Level  int    `json:"level"`
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

// matchKey is (red matches, blue matches)
type matchKey struct{ red, blue int }

var (
	ssqTier1 = PrizeTier{1, "一等奖", 500000000}
	ssqTier2 = PrizeTier{2, "二等奖", 10000000}
	ssqTier3 = PrizeTier{3, "三等奖", 300000}
	ssqTier4 = PrizeTier{4, "四等奖", 20000}
	ssqTier5 = PrizeTier{5, "五等奖", 1000}
	ssqTier6 = PrizeTier{6, "六等奖", 500}

	dltTier1 = PrizeTier{1, "一等奖", 1000000000}
	dltTier2 = PrizeTier{2, "二等奖", 80000000}
	dltTier3 = PrizeTier{3, "三等奖", 1000000}
	dltTier4 = PrizeTier{4, "四等奖", 300000}
	dltTier5 = PrizeTier{5, "五等奖", 30000}
	dltTier6 = PrizeTier{6, "六等奖", 10000}
	dltTier7 = PrizeTier{7, "七等奖", 1500}
	dltTier8 = PrizeTier{8, "八等奖", 500}
)

// prizeRules maps a game to its (red, blue) match table
var prizeRules = map[string]map[matchKey]PrizeTier{
	GameSSQ: {
		{6, 1}: ssqTier1,
		{6, 0}: ssqTier2,
		{5, 1}: ssqTier3,
		{5, 0}: ssqTier4, {4, 1}: ssqTier4,
		{4, 0}: ssqTier5, {3, 1}: ssqTier5,
		{2, 1}: ssqTier6, {1, 1}: ssqTier6, {0, 1}: ssqTier6,
	},
	GameDLT: {
		{5, 2}: dltTier1,
		{5, 1}: dltTier2,
		{5, 0}: dltTier3,
		{4, 2}: dltTier4,
		{4, 1}: dltTier5, {3, 2}: dltTier5,
		{4, 0}: dltTier6, {3, 1}: dltTier6, {2, 2}: dltTier6,
		{3, 0}: dltTier7, {2, 1}: dltTier7, {1, 2}: dltTier7, {0, 2}: dltTier7,
		{2, 0}: dltTier8, {1, 1}: dltTier8, {0, 1}: dltTier8,
	},
}

// PrizeFor returns the tier won with the given match counts
func PrizeFor(gameCode string, redMatches, blueMatches int) (PrizeTier, bool, error) {
	rules, ok := prizeRules[gameCode]
	if !ok {
		return PrizeTier{}, false, ErrUnknownGame.WithGame(gameCode).WithDetailsf("no prize table for %q", gameCode)
	}
	tier, won := rules[matchKey{redMatches, blueMatches}]
	return tier, won, nil
}

// WinningMatch is one winning comparison against a historical draw
type WinningMatch struct {
	Period      string    `json:"period"`
	Date        string    `json:"date"`
	RedMatches  int       `json:"redMatches"`
	BlueMatches int       `json:"blueMatches"`
	MatchedRed  []int     `json:"matchedRed"`
	MatchedBlue []int     `json:"matchedBlue"`
	Tier        PrizeTier `json:"tier"`
}

// WinningReport summarises a ticket checked against a run of draws
type WinningReport struct {
	Ticket       Ticket         `json:"ticket"`
	CheckedDraws int            `json:"checkedDraws"`
	Matches      []WinningMatch `json:"matches"`
	TotalMatches int            `json:"totalMatches"`
	TotalPrize   int64          `json:"totalPrize"`
}

// EvaluateTicket compares a ticket against one draw
func EvaluateTicket(game *GameConfig, t Ticket, record DrawRecord) (WinningMatch, bool, error) {
	matchedRed := matchNumbers(t.Red, record.Red)
	matchedBlue := matchNumbers(t.Blue, record.Blue)

	tier, won, err := PrizeFor(game.Code, len(matchedRed), len(matchedBlue))
	if err != nil || !won {
		return WinningMatch{}, false, err
	}

	return WinningMatch{
		Period:      record.Period,
		Date:        record.Date,
		RedMatches:  len(matchedRed),
		BlueMatches: len(matchedBlue),
		MatchedRed:  matchedRed,
		MatchedBlue: matchedBlue,
		Tier:        tier,
	}, true, nil
}

// CheckWinning evaluates the ticket against every record, newest first
func CheckWinning(game *GameConfig, t Ticket, records []DrawRecord) (*WinningReport, error) {
	if err := ValidateTicket(game, t); err != nil {
		return nil, err
	}

	report := &WinningReport{Ticket: t, CheckedDraws: len(records), Matches: []WinningMatch{}}
	for _, r := range records {
		m, won, err := EvaluateTicket(game, t, r)
		if err != nil {
			return nil, err
		}
		if !won {
			continue
		}
		report.Matches = append(report.Matches, m)
		report.TotalPrize += m.Tier.Amount
	}
	report.TotalMatches = len(report.Matches)

	return report, nil
}

// matchNumbers returns the ticket numbers present in drawn, in ticket order
func matchNumbers(ticket Combination, drawn []int) []int {
	set := make(map[int]struct{}, len(drawn))
	for _, n := range drawn {
		set[n] = struct{}{}
	}
	var out []int
	for _, n := range ticket {
		if _, ok := set[n]; ok {
			out = append(out, n)
		}
	}
	return out
}
