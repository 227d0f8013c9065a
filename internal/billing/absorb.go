package billing

import "sort"

// AbsorptionDay summarizes the absorption pass for one calendar date.
type AbsorptionDay struct {
	Date                  string `json:"date"`
	SlackSeconds          int64  `json:"slack_seconds"`
	AdminRawSeconds       int64  `json:"admin_raw_seconds"`
	AbsorbedSeconds       int64  `json:"absorbed_seconds"`
	LeftoverRawSeconds    int64  `json:"leftover_raw_seconds"`
	LeftoverBilledSeconds int64  `json:"leftover_billed_seconds"`
}

// Absorb reduces absorbable drafts by consuming the rounding slack that the other
// drafts of the same date produce. Dates are processed in ascending order and
// drafts within a date in build order, so the outcome depends only on input order.
// Drafts reduced to zero are dropped. Leftover admin time stays on its own draft.
//
// The input slice is not modified. Without an absorb tag the drafts are returned
// unchanged and no report is produced.
func Absorb(drafts []DraftLineItem, absorbTag string) ([]DraftLineItem, []AbsorptionDay) {
	out := make([]DraftLineItem, len(drafts))
	copy(out, drafts)
	if absorbTag == "" {
		return out, nil
	}

	byDate := make(map[string][]int)
	for i := range out {
		byDate[out[i].Key.Date] = append(byDate[out[i].Key.Date], i)
	}
	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	dropped := make(map[int]bool)
	var reports []AbsorptionDay

	for _, date := range dates {
		idx := byDate[date]
		sort.SliceStable(idx, func(a, b int) bool { return out[idx[a]].Seq < out[idx[b]].Seq })

		var admin []int
		var slack, adminRaw int64
		for _, i := range idx {
			if out[i].Absorbable {
				admin = append(admin, i)
				adminRaw += out[i].RawSeconds
				continue
			}
			slack += SlackSeconds(out[i].RawSeconds)
		}
		if len(admin) == 0 {
			continue
		}

		remaining := slack
		var absorbed int64
		for _, i := range admin {
			if remaining <= 0 {
				break
			}
			reduce := min(out[i].RawSeconds, remaining)
			out[i].RawSeconds -= reduce
			remaining -= reduce
			absorbed += reduce
		}

		day := AbsorptionDay{
			Date:            date,
			SlackSeconds:    slack,
			AdminRawSeconds: adminRaw,
			AbsorbedSeconds: absorbed,
		}
		for _, i := range admin {
			if out[i].RawSeconds <= 0 {
				dropped[i] = true
				continue
			}
			day.LeftoverRawSeconds += out[i].RawSeconds
			day.LeftoverBilledSeconds += BilledSeconds(out[i].RawSeconds, out[i].Multiplier)
		}
		reports = append(reports, day)
	}

	survivors := make([]DraftLineItem, 0, len(out))
	for i := range out {
		if !dropped[i] {
			survivors = append(survivors, out[i])
		}
	}
	sort.SliceStable(survivors, func(a, b int) bool { return survivors[a].Seq < survivors[b].Seq })
	return survivors, reports
}
