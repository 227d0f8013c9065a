package billing

import "github.com/shopspring/decimal"

var blockSize = decimal.NewFromInt(BlockSeconds)

// BilledSeconds applies multiplier to raw seconds and rounds up to whole 15-minute
// blocks. Decimal arithmetic keeps multipliers like 1.1 exact before the ceiling.
func BilledSeconds(raw int64, multiplier float64) int64 {
	if raw <= 0 {
		return 0
	}
	scaled := decimal.NewFromInt(raw).Mul(decimal.NewFromFloat(multiplier))
	if !scaled.IsPositive() {
		return 0
	}
	blocks, rem := scaled.QuoRem(blockSize, 0)
	if rem.IsPositive() {
		blocks = blocks.Add(decimal.NewFromInt(1))
	}
	return blocks.IntPart() * BlockSeconds
}

// SlackSeconds is the gap between raw seconds rounded up to a block and the raw
// seconds themselves. Always computed before any multiplier.
func SlackSeconds(raw int64) int64 {
	if raw <= 0 {
		return 0
	}
	return BilledSeconds(raw, 1) - raw
}

// Finalize rounds a draft exactly once and produces its output record.
func Finalize(d DraftLineItem) FinalRecord {
	return FinalRecord{
		Date:               d.Key.Date,
		Project:            d.Key.Project,
		ProjectTask:        d.Key.ProjectTask,
		ProjectDisplay:     d.ProjectDisplay,
		ProjectTaskDisplay: d.ProjectTaskDisplay,
		Role:               d.Key.Role,
		Type:               d.Key.Type,
		DurationSeconds:    BilledSeconds(d.RawSeconds, d.Multiplier),
		Description:        d.Description.Clone(),
		ExternalComment:    d.ExternalComment,
		Delimiter:          d.Delimiter,
		OutputSeparator:    d.OutputSeparator,
		Refine:             d.Refine,
	}
}
