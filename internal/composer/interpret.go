package composer

import (
	"math"

	"CycleSentinel/internal/model"
)

type band struct {
	threshold   float64
	strength    string
	bottomDesc  string
	bottomColor string
	topDesc     string
	topColor    string
}

// Bands are closed at the lower edge: a score of exactly 0.8 interprets as
// Very Strong.
var bands = []band{
	{0.8, "Very Strong",
		"Multiple indicators suggest high probability of market bottom", "green",
		"Multiple indicators suggest high probability of market top", "red"},
	{0.6, "Strong",
		"Several indicators suggest potential market bottom", "yellow-green",
		"Several indicators suggest potential market top", "orange"},
	{0.4, "Moderate",
		"Mixed signals with some bottom indicators present", "yellow",
		"Mixed signals with some top indicators present", "yellow"},
	{0.2, "Weak",
		"Few bottom indicators present, market may continue declining", "orange",
		"Few top indicators present, market may continue rising", "yellow-green"},
	{math.Inf(-1), "Very Weak",
		"Bottom indicators not present, market likely to continue declining", "red",
		"Top indicators not present, market likely to continue rising", "green"},
}

// Interpret maps a composite score into its strength band for the given
// side. The percentage is the score in percent, rounded to one decimal.
func Interpret(side model.Side, score float64) *model.Interpretation {
	for _, b := range bands {
		if score >= b.threshold {
			out := &model.Interpretation{
				Strength:   b.strength,
				Score:      score,
				Percentage: math.Round(score*1000) / 10,
			}
			if side == model.SideTop {
				out.Description = b.topDesc
				out.Color = b.topColor
			} else {
				out.Description = b.bottomDesc
				out.Color = b.bottomColor
			}
			return out
		}
	}
	return nil
}
