package view

import (
	"testing"
	"time"

	"jecnaapi/lib/schoolyear"
	"jecnaapi/lib/timezone"

	"github.com/stretchr/testify/require"
)

const attendancesFixture = `<html><body>
<select id="schoolYearId"><option selected="selected">2023/2024</option></select>
<select id="schoolYearPartMonthId"><option value="9" selected="selected">září</option></select>
<table class="absence-list"><tbody>
<tr>
  <td class="date">pá 8.9.</td>
  <td><p>Příchod 7:25, Odchod 14:05</p><p>Příchod 14:35</p></td>
</tr>
<tr>
  <td class="date">po 11.9.</td>
  <td></td>
</tr>
</tbody></table>
</body></html>`

func TestParseAttendancesPage(t *testing.T) {
	page, err := ParseAttendancesPage(document(t, attendancesFixture))
	require.NoError(t, err)

	require.Equal(t, schoolyear.SchoolYear{FirstYear: 2023}, page.SchoolYear)
	require.Equal(t, time.September, page.Month)

	// the empty day is dropped
	require.Len(t, page.Days, 1)

	day, ok := page.Day(schoolyear.Date(2023, time.September, 8))
	require.True(t, ok)
	require.Len(t, day.Attendances, 3)
	require.Equal(t, Attendance{Type: AttendanceEnter, Time: DayTime{Hour: 7, Minute: 25}}, day.Attendances[0])
	require.Equal(t, Attendance{Type: AttendanceExit, Time: DayTime{Hour: 14, Minute: 5}}, day.Attendances[1])
	require.Equal(t, AttendanceEnter, day.Attendances[2].Type)
}

const absencesFixture = `<html><body>
<select id="schoolYearId"><option selected="selected">2023/2024</option></select>
<table class="absence-list"><tbody>
<tr><td class="date"><a href="/absence/student/detail/123">pá 8.9.</a></td><td class="count">6 hodin</td></tr>
<tr><td class="date">čt 15.2.</td><td class="count">2</td></tr>
<tr><td class="date">po 19.2.</td><td class="count">-</td></tr>
</tbody></table>
</body></html>`

func TestParseAbsencesPage(t *testing.T) {
	page, err := ParseAbsencesPage(document(t, absencesFixture))
	require.NoError(t, err)

	require.Equal(t, schoolyear.SchoolYear{FirstYear: 2023}, page.SchoolYear)
	require.Len(t, page.Days, 2)

	require.Equal(t, schoolyear.Date(2023, time.September, 8), page.Days[0].Date)
	require.Equal(t, 6, page.Days[0].HoursTotal)
	require.Equal(t, "hodin", page.Days[0].Note)

	// February falls into the second calendar year of the school year
	require.Equal(t, schoolyear.Date(2024, time.February, 15), page.Days[1].Date)
	require.Equal(t, 2, page.Days[1].HoursTotal)
	require.Empty(t, page.Days[1].Note)
}

const newsFixture = `<html><body>
<div class="event">
  <div class="name">Den otevřených dveří</div>
  <div class="text">Přijďte se podívat <b>v pátek</b>.</div>
  <div class="files"><ul><li><a href="/files/plakat.pdf"><span class="label">Plakát</span></a></li></ul></div>
  <div class="images"><a href="/images/1.jpg"></a><a href="/images/2.jpg"></a></div>
  <div class="footer">5. září | Jan Novák | jen pro školu</div>
</div>
<div class="event">
  <div class="name">Výsledky voleb</div>
  <div class="text">Zvoleni byli tři zástupci.</div>
  <div class="date">12. října</div>
  <div class="footer">Petr Svoboda</div>
</div>
</body></html>`

func TestParseNewsPage(t *testing.T) {
	articles, err := ParseNewsPage(document(t, newsFixture))
	require.NoError(t, err)
	require.Len(t, articles, 2)

	first := articles[0]
	require.Equal(t, "Den otevřených dveří", first.Title)
	require.Equal(t, "Přijďte se podívat v pátek.", first.Content)
	require.Contains(t, first.HTMLContent, "<b>v pátek</b>")
	require.Equal(t, "Jan Novák", first.Author)
	require.True(t, first.SchoolOnly)
	require.Equal(t, time.September, first.Date.Month())
	require.Equal(t, 5, first.Date.Day())
	require.Equal(t, timezone.Now().Year(), first.Date.Year())
	require.Len(t, first.Files, 1)
	require.Equal(t, ArticleFile{Label: "Plakát", DownloadPath: "/files/plakat.pdf"}, first.Files[0])
	require.Equal(t, []string{"/images/1.jpg", "/images/2.jpg"}, first.Images)

	second := articles[1]
	require.Equal(t, "Petr Svoboda", second.Author)
	require.False(t, second.SchoolOnly)
	require.Equal(t, time.October, second.Date.Month())
	require.Equal(t, 12, second.Date.Day())
}

const teachersFixture = `<html><body>
<div class="contentLeftColumn"><ul>
  <li><a href="/ucitel/Nov">Jan Novák</a></li>
  <li><a href="/ucitel/Svo">Petr Svoboda</a></li>
</ul></div>
<div class="contentRightColumn"><ul>
  <li><a href="/ucitel/Dvo">Marie Dvořáková</a></li>
</ul></div>
</body></html>`

func TestParseTeachersPage(t *testing.T) {
	teachers := ParseTeachersPage(document(t, teachersFixture))
	require.Len(t, teachers, 3)
	require.Equal(t, TeacherReference{FullName: "Jan Novák", Tag: "Nov"}, teachers[0])
	require.Equal(t, TeacherReference{FullName: "Marie Dvořáková", Tag: "Dvo"}, teachers[2])
}

func TestClosestTeacher(t *testing.T) {
	teachers := ParseTeachersPage(document(t, teachersFixture))

	// missing diacritics still resolve
	match, err := ClosestTeacher(teachers, "Jan Novak")
	require.NoError(t, err)
	require.Equal(t, "Nov", match.Tag)

	match, err = ClosestTeacher(teachers, "Marie Dvorakova")
	require.NoError(t, err)
	require.Equal(t, "Dvo", match.Tag)

	_, err = ClosestTeacher(nil, "Jan Novak")
	require.Error(t, err)
}

const teacherFixture = `<html><body>
<h1>Ing. Jan Novák</h1>
<table class="userprofile">
<tr><td class="label">E-mail</td><td class="value">novak@spsejecna.cz</td></tr>
<tr><td class="label">Telefon</td><td class="value">222 222 222</td></tr>
<tr><td class="label">Konzultační hodiny</td><td class="value">úterý 14:00 - 15:00</td></tr>
<tr><td class="label">Kabinet</td><td class="value">K12</td></tr>
</table>
</body></html>`

func TestParseTeacher(t *testing.T) {
	teacher, err := ParseTeacher(document(t, teacherFixture), "Nov")
	require.NoError(t, err)
	require.Equal(t, "Ing. Jan Novák", teacher.FullName)
	require.Equal(t, "Nov", teacher.Tag)
	require.Equal(t, "novak@spsejecna.cz", teacher.Email)
	require.Equal(t, "222 222 222", teacher.Phone)
	require.Equal(t, "úterý 14:00 - 15:00", teacher.Consultations)
	require.Equal(t, "K12", teacher.Cabinet)
}

const roomsFixture = `<html><body>
<ul class="list">
  <li><a class="item" href="/ucebna/U12"><span class="label">U12 (učebna výpočetní techniky)</span></a></li>
  <li><a class="item" href="/ucebna/TV"><span class="label">TV</span></a></li>
</ul>
</body></html>`

func TestParseRoomsPage(t *testing.T) {
	rooms := ParseRoomsPage(document(t, roomsFixture))
	require.Len(t, rooms, 2)
	require.Equal(t, RoomReference{Name: "U12", Code: "U12"}, rooms[0])
	require.Equal(t, RoomReference{Name: "TV", Code: "TV"}, rooms[1])
}

const studentFixture = `<html><body>
<div class="profilephoto"><span class="image"><img src="/photo/novakj.jpg"></span></div>
<table class="userprofile">
<tr><td class="label">Celé jméno</td><td class="value">Josef Novák</td></tr>
<tr><td class="label">Uživatelské jméno</td><td class="value">novakj</td></tr>
<tr><td class="label">Školní e-mail</td><td class="link">novakj@spsejecna.cz (aktivní)</td></tr>
<tr><td class="label">Soukromý e-mail</td><td class="link">josef@example.com</td></tr>
<tr><td class="label">Telefon</td><td class="value">+420 777 123 456</td></tr>
<tr><td class="label">Věk</td><td class="value">17 let</td></tr>
<tr><td class="label">Narození</td><td class="value">1.1.2007, Praha</td></tr>
<tr><td class="label">Trvalá adresa</td><td class="value">Ječná 30, Praha 2</td></tr>
<tr><td class="label">Třída, skupiny</td><td class="value">C4b, skupiny: A&lt;1,2&gt;, O</td></tr>
<tr><td class="label">Číslo v tříd. výkazu</td><td class="value">15</td></tr>
</table>
<h2>Rodiče a zákonní zástupci</h2>
<ul class="list"><li>Jana Nováková, +420 777 654 321 jana@example.com</li></ul>
</body></html>`

func TestParseStudentProfile(t *testing.T) {
	student, err := ParseStudentProfile(document(t, studentFixture))
	require.NoError(t, err)

	require.Equal(t, "Josef Novák", student.FullName)
	require.Equal(t, "novakj", student.Username)
	require.Equal(t, "novakj@spsejecna.cz", student.SchoolMail)
	require.Equal(t, "josef@example.com", student.PrivateMail)
	require.Equal(t, []string{"+420 777 123 456"}, student.PhoneNumbers)
	require.Equal(t, "/photo/novakj.jpg", student.PhotoPath)
	require.Equal(t, 17, student.Age)
	require.Equal(t, schoolyear.Date(2007, time.January, 1), student.BirthDate)
	require.Equal(t, "Praha", student.BirthPlace)
	require.Equal(t, "Ječná 30, Praha 2", student.Address)
	require.Equal(t, "C4b", student.ClassName)
	require.Equal(t, "A<1,2>, O", student.ClassGroups)
	require.Equal(t, 15, student.ClassNumber)

	require.Len(t, student.Guardians, 1)
	guardian := student.Guardians[0]
	require.Equal(t, "Jana Nováková", guardian.Name)
	require.Equal(t, "+420 777 654 321", guardian.Phone)
	require.Equal(t, "jana@example.com", guardian.Email)
}

func TestParseStudentProfileMissingRequiredRow(t *testing.T) {
	_, err := ParseStudentProfile(document(t, `<table class="userprofile"></table>`))
	require.Error(t, err)
}

const lockerFixture = `<html><body>
<ul class="list"><li><span class="item"><span class="label">skříňka č. 300 (Přízemí, 4. ulička vpravo) od 1.9.2022 do současnosti</span></span></li></ul>
</body></html>`

func TestParseLockerPage(t *testing.T) {
	locker := ParseLockerPage(document(t, lockerFixture))
	require.NotNil(t, locker)
	require.Equal(t, "300", locker.Number)
	require.Equal(t, "Přízemí, 4. ulička vpravo", locker.Description)
	require.Equal(t, schoolyear.Date(2022, time.September, 1), locker.AssignedFrom)
	require.True(t, locker.AssignedUntil.IsZero())

	require.Nil(t, ParseLockerPage(document(t, "<html><body></body></html>")))
}

const notificationsFixture = `<html><body>
<ul class="list">
  <li><a href="/user-student/record?userStudentRecordId=123">
    <span class="sprite-icon-16 sprite-icon-tick-16"></span>
    <span class="label">1.9.2023, Pochvala za reprezentaci školy</span>
  </a></li>
  <li><a href="/user-student/record?userStudentRecordId=124">
    <span class="sprite-icon-16 sprite-icon-cross-16"></span>
    <span class="label">2.9.2023, Zapomněl úbor</span>
  </a></li>
</ul>
</body></html>`

func TestParseNotifications(t *testing.T) {
	refs, err := ParseNotifications(document(t, notificationsFixture))
	require.NoError(t, err)
	require.Len(t, refs, 2)

	require.Equal(t, NotificationGood, refs[0].Type)
	require.Equal(t, "Pochvala za reprezentaci školy", refs[0].Message)
	require.Equal(t, 123, refs[0].RecordID)

	require.Equal(t, NotificationBad, refs[1].Type)
	require.Equal(t, 124, refs[1].RecordID)
}

const notificationFixture = `<html><body>
<h1 id="h1"><span class="icon sprite-icon-32 sprite-icon-tick-32"></span>Pochvala</h1>
<table class="userprofile">
<tr><td class="label">Typ</td><td class="value"><span>pochvala třídního učitele</span></td></tr>
<tr><td class="label">Datum</td><td class="value"><span>01.09.2023</span></td></tr>
<tr><td class="label">Sdělení</td><td class="value"><span>Pochvala za reprezentaci školy</span></td></tr>
<tr><td class="label">Číslo jednací</td><td class="value"><span>ABC/123</span></td></tr>
<tr><td class="label">Udělil</td><td class="value"><a href="/ucitel/Nov"><span class="label">Jan Novák</span></a></td></tr>
</table>
</body></html>`

func TestParseNotification(t *testing.T) {
	notification, err := ParseNotification(document(t, notificationFixture))
	require.NoError(t, err)

	require.Equal(t, NotificationGood, notification.Type)
	require.Equal(t, "pochvala třídního učitele", notification.ExactType)
	require.Equal(t, schoolyear.Date(2023, time.September, 1), notification.Date)
	require.Equal(t, "Pochvala za reprezentaci školy", notification.Message)
	require.Equal(t, "ABC/123", notification.CaseNumber)
	require.NotNil(t, notification.IssuedBy)
	require.Equal(t, TeacherReference{FullName: "Jan Novák", Tag: "Nov"}, *notification.IssuedBy)
}
