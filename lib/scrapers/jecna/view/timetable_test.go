package view

import (
	"testing"
	"time"

	"jecnaapi/lib/schoolyear"

	"github.com/stretchr/testify/require"
)

const timetableFixture = `<html><body>
<select id="schoolYearId">
  <option value="22" selected="selected">2023/2024</option>
</select>
<select id="timetableId">
  <option value="147" selected="selected">Od 1.9.2023 do 30.6.2024</option>
  <option value="150">Mimořádný rozvrh - Od 24.12.2023</option>
</select>
<table class="timetable"><tbody>
<tr>
  <th></th>
  <th class="period">1<br><span class="time">7:30 - 8:15</span></th>
  <th class="period">2<br><span class="time">8:20 - 9:05</span></th>
</tr>
<tr>
  <th class="day">Po</th>
  <td>
    <div><span class="subject" title="Matematika">M</span><span class="employee" title="Jan Novák">No</span><span class="room">U12</span><span class="group">1</span></div>
    <div><span class="subject" title="Matematika">M</span><span class="employee" title="Petr Svoboda">Sv</span><span class="room">U13</span><span class="group">2</span></div>
  </td>
  <td colspan="1">
    <div><span class="subject" title="Fyzika">F</span><span class="employee" title="Jan Novák">No</span><span class="room">U5</span></div>
  </td>
</tr>
<tr>
  <th class="day">Út</th>
  <td class="empty" colspan="2"></td>
</tr>
</tbody></table>
</body></html>`

func TestParseTimetablePage(t *testing.T) {
	page, err := ParseTimetablePage(document(t, timetableFixture))
	require.NoError(t, err)

	require.Equal(t, schoolyear.SchoolYear{FirstYear: 2023}, page.SchoolYear)

	require.Len(t, page.Timetable.Periods, 2)
	require.Equal(t, LessonPeriod{
		From: DayTime{Hour: 7, Minute: 30},
		To:   DayTime{Hour: 8, Minute: 15},
	}, page.Timetable.Periods[0])

	monday := page.Timetable.Days[time.Monday]
	require.Len(t, monday, 2)

	split := monday[0]
	require.Equal(t, 1, split.PeriodSpan)
	require.Len(t, split.Lessons, 2)
	require.Equal(t, Name{Full: "Matematika", Short: "M"}, split.Lessons[0].Subject)
	require.Equal(t, "U12", split.Lessons[0].Room)
	require.Equal(t, "1", split.Lessons[0].Group)
	require.NotNil(t, split.Lessons[0].Teacher)
	require.Equal(t, "Jan Novák", split.Lessons[0].Teacher.Full)
	require.Equal(t, "2", split.Lessons[1].Group)

	tuesday := page.Timetable.Days[time.Tuesday]
	require.Len(t, tuesday, 1)
	require.True(t, tuesday[0].Empty())
	require.Equal(t, 2, tuesday[0].PeriodSpan)

	require.Len(t, page.PeriodOptions, 2)
	regular := page.PeriodOptions[0]
	require.Equal(t, 147, regular.ID)
	require.True(t, regular.Selected)
	require.Empty(t, regular.Header)
	require.Equal(t, schoolyear.Date(2023, time.September, 1), regular.From)
	require.Equal(t, schoolyear.Date(2024, time.June, 30), regular.To)

	irregular := page.PeriodOptions[1]
	require.Equal(t, "Mimořádný rozvrh", irregular.Header)
	require.Equal(t, schoolyear.Date(2023, time.December, 24), irregular.From)
	require.True(t, irregular.To.IsZero())

	selected, ok := page.SelectedOption()
	require.True(t, ok)
	require.Equal(t, 147, selected.ID)
}

func TestParseLessonPeriod(t *testing.T) {
	period, err := ParseLessonPeriod("7:30 - 8:15")
	require.NoError(t, err)
	require.Equal(t, "7:30 - 8:15", period.String())
	require.True(t, period.From.Before(period.To))

	_, err = ParseLessonPeriod("7:30")
	require.Error(t, err)

	_, err = ParseLessonPeriod("25:00 - 26:00")
	require.Error(t, err)
}
