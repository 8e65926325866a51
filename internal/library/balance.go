package library

import (
	"fmt"

	"github.com/pavithrahatharasinghe/MediaMaestro/pkg/models"
)

// BalanceReport summarizes a playlist's per-format file counts. Balanced
// means all three counts are equal.
type BalanceReport struct {
	Counts          map[models.Format]int `json:"counts"`
	Balanced        bool                  `json:"balanced"`
	Recommendations []string              `json:"recommendations,omitempty"`
}

// ComputeBalance derives the balance verdict and recommendations from the
// three format counts. Pure function: no I/O, no side effects. A format
// earns a recommendation when its count is strictly below the maximum of
// the other two.
func ComputeBalance(lossy, lossless, video int) BalanceReport {
	counts := map[models.Format]int{
		models.FormatLossyAudio:    lossy,
		models.FormatLosslessAudio: lossless,
		models.FormatVideo:         video,
	}

	report := BalanceReport{
		Counts:   counts,
		Balanced: lossy == lossless && lossless == video,
	}

	for _, f := range models.Formats() {
		maxOther := 0
		for _, other := range models.Formats() {
			if other != f && counts[other] > maxOther {
				maxOther = counts[other]
			}
		}
		if counts[f] < maxOther {
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("playlist is missing %d %s file(s)", maxOther-counts[f], f))
		}
	}

	return report
}

// Organize scans a playlist and returns its balance report.
func (l *Library) Organize(playlistKey string) (BalanceReport, error) {
	inv, _, _, err := l.Scan(playlistKey)
	if err != nil {
		return BalanceReport{}, err
	}
	return ComputeBalance(
		inv.Counts[models.FormatLossyAudio],
		inv.Counts[models.FormatLosslessAudio],
		inv.Counts[models.FormatVideo],
	), nil
}
