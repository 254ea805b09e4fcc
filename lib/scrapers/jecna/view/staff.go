package view

import (
	"context"
	"fmt"
	"strings"

	"jecnaapi/lib/htmlutil"
	"jecnaapi/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
)

// TeacherReference points to a teacher's profile page. Tag is the short
// code used in profile URLs, e.g. "Nov" in /ucitel/Nov.
type TeacherReference struct {
	FullName string
	Tag      string
}

// Teacher is the parsed profile of one teacher.
type Teacher struct {
	FullName string
	Tag      string
	Email    string
	Phone    string
	// Consultations is the teacher's consultation hours as printed.
	Consultations string
	// Cabinet is the room the teacher resides in.
	Cabinet string
}

// Teachers fetches the list of all teachers.
func (c *Client) Teachers(ctx context.Context) ([]TeacherReference, error) {
	ctx, span := tracer.Start(ctx, "view:Teachers")
	defer span.End()

	doc, err := c.fetchDocument(ctx, teachersPath, nil)
	if err != nil {
		return nil, err
	}
	return ParseTeachersPage(doc), nil
}

// Teacher fetches one teacher's profile by tag.
func (c *Client) Teacher(ctx context.Context, tag string) (*Teacher, error) {
	ctx, span := tracer.Start(ctx, "view:Teacher")
	defer span.End()

	doc, err := c.fetchDocument(ctx, teachersPath+"/"+tag, nil)
	if err != nil {
		return nil, err
	}
	return ParseTeacher(doc, tag)
}

// FindTeacher fuzzy-matches a name against the teacher list and returns
// the closest reference. Diacritics and word order mistakes are
// tolerated, an empty list is an error.
func (c *Client) FindTeacher(ctx context.Context, name string) (TeacherReference, error) {
	ctx, span := tracer.Start(ctx, "view:FindTeacher")
	defer span.End()

	teachers, err := c.Teachers(ctx)
	if err != nil {
		return TeacherReference{}, err
	}
	return ClosestTeacher(teachers, name)
}

// ClosestTeacher picks the reference whose name is most similar to the
// query.
func ClosestTeacher(teachers []TeacherReference, name string) (TeacherReference, error) {
	if len(teachers) == 0 {
		return TeacherReference{}, fmt.Errorf("no teachers to match %q against", name)
	}

	best := teachers[0]
	bestScore := -1.0
	for _, teacher := range teachers {
		score := matchr.JaroWinkler(textutil.NormalizeName(name), textutil.NormalizeName(teacher.FullName), true)
		if score > bestScore {
			best = teacher
			bestScore = score
		}
	}
	return best, nil
}

// ParseTeachersPage parses the /ucitel listing.
func ParseTeachersPage(doc *goquery.Document) []TeacherReference {
	var teachers []TeacherReference
	doc.Find(".contentLeftColumn > ul a, .contentRightColumn > ul a").Each(func(_ int, anchor *goquery.Selection) {
		href := anchor.AttrOr("href", "")
		tag := strings.TrimPrefix(href, teachersPath+"/")
		if tag == "" || tag == href {
			return
		}
		teachers = append(teachers, TeacherReference{
			FullName: htmlutil.CleanText(anchor.Text()),
			Tag:      tag,
		})
	})
	return teachers
}

// ParseTeacher parses a /ucitel/<tag> profile page.
func ParseTeacher(doc *goquery.Document, tag string) (*Teacher, error) {
	table, err := htmlutil.SelectFirst(doc.Selection, "table.userprofile", "teacher profile table")
	if err != nil {
		return nil, err
	}
	heading, err := htmlutil.SelectFirst(doc.Selection, "h1", "teacher name")
	if err != nil {
		return nil, err
	}

	teacher := &Teacher{
		FullName: htmlutil.CleanText(heading.Text()),
		Tag:      tag,
	}

	rows := tableRowsByLabel(table)
	if value, ok := rows["E-mail"]; ok {
		teacher.Email = htmlutil.CleanText(value.Text())
	}
	if value, ok := rows["Telefon"]; ok {
		teacher.Phone = htmlutil.CleanText(value.Text())
	}
	if value, ok := rows["Konzultační hodiny"]; ok {
		teacher.Consultations = htmlutil.CleanText(value.Text())
	}
	if value, ok := rows["Kabinet"]; ok {
		teacher.Cabinet = htmlutil.CleanText(value.Text())
	}

	return teacher, nil
}
