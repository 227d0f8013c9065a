package timew

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rswrz/timewarrior-extensions/internal/errors"
)

const sampleReport = `debug: off
reports.dynamics.absorb_tag: admin
reports.dynamics.annotation_delimiter: ;
temp.report.start: 20240115T000000Z

[
{"id":2,"start":"20240115T090000Z","end":"20240115T092000Z","tags":["A","B"],"annotation":"Feature"},
{"id":1,"start":"20240115T100000Z","tags":["A"]}
]
`

func TestSplitReport(t *testing.T) {
	header, payload := SplitReport(sampleReport)

	require.Equal(t, "admin", header["reports.dynamics.absorb_tag"])
	require.Equal(t, ";", header["reports.dynamics.annotation_delimiter"])
	require.Equal(t, "off", header["debug"])
	require.True(t, strings.HasPrefix(payload, "["))
}

func TestSplitReport_PayloadOnly(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no blank line", `[{"start":"20240115T090000Z"}]`},
		{"array first", "[\n{\"start\":\"20240115T090000Z\"}\n\n]"},
		{"no key value lines", "just some text\n\n[]"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header, payload := SplitReport(tt.content)
			require.Empty(t, header)
			require.Equal(t, tt.content, payload)
		})
	}
}

func TestReadReport(t *testing.T) {
	report, err := ReadReport(strings.NewReader(sampleReport))
	require.NoError(t, err)
	require.Equal(t, "20240115T000000Z", report.Header["temp.report.start"])

	intervals, issues, err := ParseExport(report.Payload, time.UTC)
	require.NoError(t, err)
	require.Empty(t, issues)
	require.Len(t, intervals, 2)
}

func TestParseExport(t *testing.T) {
	_, payload := SplitReport(sampleReport)

	intervals, issues, err := ParseExport(payload, time.UTC)
	require.NoError(t, err)
	require.Empty(t, issues)
	require.Len(t, intervals, 2)

	first := intervals[0]
	require.Equal(t, time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC), first.Start)
	require.NotNil(t, first.End)
	require.Equal(t, 20*time.Minute, first.End.Sub(first.Start))
	require.Equal(t, []string{"A", "B"}, first.Tags)
	require.Equal(t, "Feature", first.Annotation)

	require.True(t, intervals[1].Active())
}

func TestParseExport_Offsets(t *testing.T) {
	intervals, _, err := ParseExport(`[{"start":"20240115T100000+0100","end":"20240115T110000+0100"}]`, time.UTC)
	require.NoError(t, err)
	require.Len(t, intervals, 1)
	require.Equal(t, time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC), intervals[0].Start)
}

func TestParseExport_SkipsBadTimestamps(t *testing.T) {
	payload := `[
		{"id":1,"start":"yesterday","end":"20240115T092000Z"},
		{"id":2,"start":"20240115T090000Z","end":"soon"},
		{"id":3,"start":"20240115T090000Z","end":"20240115T091500Z"}
	]`

	intervals, issues, err := ParseExport(payload, time.UTC)
	require.NoError(t, err)
	require.Len(t, intervals, 1)
	require.Len(t, issues, 2)
	require.Equal(t, 0, issues[0].Index)
	require.Equal(t, 2, issues[1].ID)
}

func TestParseExport_SkipsWronglyTypedElements(t *testing.T) {
	tests := []struct {
		name string
		bad  string
	}{
		{"numeric start", `{"id":7,"start":20240115,"end":"20240115T100000Z"}`},
		{"object end", `{"id":7,"start":"20240115T093000Z","end":{"at":"later"}}`},
		{"string tags", `{"id":7,"start":"20240115T093000Z","tags":"A"}`},
		{"not an object", `"20240115T093000Z"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := `[{"id":8,"start":"20240115T090000Z","end":"20240115T093000Z","tags":["A"]},` + tt.bad + `]`

			intervals, issues, err := ParseExport(payload, time.UTC)
			require.NoError(t, err)
			require.Len(t, intervals, 1)
			require.Equal(t, []string{"A"}, intervals[0].Tags)
			require.Equal(t, 0, intervals[0].Index)
			require.Len(t, issues, 1)
			require.Equal(t, 1, issues[0].Index)
		})
	}
}

func TestParseExport_IndexFollowsPayloadPosition(t *testing.T) {
	payload := `[
		{"start":"bad"},
		{"start":"20240115T090000Z"},
		{"start":"20240115T100000Z","end":"20240115T101500Z"}
	]`

	intervals, issues, err := ParseExport(payload, time.UTC)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Len(t, intervals, 2)
	require.Equal(t, 1, intervals[0].Index)
	require.Equal(t, 2, intervals[1].Index)
}

func TestParseExport_Empty(t *testing.T) {
	intervals, issues, err := ParseExport("  \n", time.UTC)
	require.NoError(t, err)
	require.Nil(t, intervals)
	require.Nil(t, issues)
}

func TestParseExport_Malformed(t *testing.T) {
	_, _, err := ParseExport(`{"start": 1}`, time.UTC)
	require.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestReportRange(t *testing.T) {
	tests := []struct {
		name      string
		header    map[string]string
		wantStart string
		wantEnd   string
	}{
		{"no end", map[string]string{KeyRangeStart: "20240101T000000Z"}, "", ""},
		{"midnight end moves back a day", map[string]string{
			KeyRangeStart: "20240101T000000Z",
			KeyRangeEnd:   "20240201T000000Z",
		}, "2024-01-01", "2024-01-31"},
		{"end inside day kept", map[string]string{
			KeyRangeStart: "20240101T000000Z",
			KeyRangeEnd:   "20240115T120000Z",
		}, "2024-01-01", "2024-01-15"},
		{"plain dates", map[string]string{
			KeyRangeStart: "2024-03-01",
			KeyRangeEnd:   "2024-03-02",
		}, "2024-03-01", "2024-03-01"},
		{"unreadable start", map[string]string{
			KeyRangeStart: "soon",
			KeyRangeEnd:   "20240201T000000Z",
		}, "", "2024-02-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Report{Header: tt.header}
			start, end := r.Range(time.UTC)
			require.Equal(t, tt.wantStart, formatDate(start))
			require.Equal(t, tt.wantEnd, formatDate(end))
		})
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
