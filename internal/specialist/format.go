package specialist

import (
	"strconv"

	"github.com/ashita-ai/insureai/internal/model"
)

func money(v float64) string { return model.FormatSGD(v) }

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}
