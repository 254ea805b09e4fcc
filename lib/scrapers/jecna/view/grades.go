package view

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"jecnaapi/lib/htmlutil"
	"jecnaapi/lib/schoolyear"
	"jecnaapi/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

// behaviourRowName is the subject name of the special behaviour row in
// the grades table.
const behaviourRowName = "Chování"

type FinalGradeKind int

const (
	// FinalGradeNumber is a regular 1 to 5 final grade.
	FinalGradeNumber FinalGradeKind = iota
	// FinalGradeExcused marks a subject the student is excused from
	// ("U" for "uvolněn").
	FinalGradeExcused
	// FinalGradeGradesWarning is the "5?" failing grade warning.
	FinalGradeGradesWarning
	// FinalGradeAbsenceWarning is the "N?" too-much-absence warning.
	FinalGradeAbsenceWarning
	// FinalGradeGradesAndAbsenceWarning is both warnings at once.
	FinalGradeGradesAndAbsenceWarning
)

// FinalGrade is the value in the last column of a grades table row.
type FinalGrade struct {
	Kind FinalGradeKind
	// Value is the numeric grade, set only for FinalGradeNumber.
	Value int
}

// Grade is a single received grade. Value is a digit 1 to 5 or "N" for
// a not-classified mark.
type Grade struct {
	Value string
	// Small grades carry half the weight of regular ones.
	Small bool
	// SubjectPart groups grades within a subject, e.g. "Teorie" and
	// "Cvičení". Empty when the subject has no parts.
	SubjectPart string
	Teacher     Name
	Description string
	Received    time.Time
	ID          int
}

// Subject is one row of the grades table.
type Subject struct {
	Name   Name
	Grades []Grade
	// Final is nil before the final grade is published.
	Final *FinalGrade
}

// Behaviour is the special first row of the grades table.
type Behaviour struct {
	Notifications []NotificationReference
	Final         FinalGrade
}

// GradesPage is the parsed content of the student grades page.
type GradesPage struct {
	Subjects   []Subject
	Behaviour  Behaviour
	SchoolYear schoolyear.SchoolYear
	Half       schoolyear.Half
}

// Subject finds a subject by its full name. The comparison tolerates
// diacritic and spacing differences.
func (p *GradesPage) Subject(fullName string) (Subject, bool) {
	want := textutil.NormalizeName(fullName)
	for _, subject := range p.Subjects {
		if textutil.NormalizeName(subject.Name.Full) == want {
			return subject, true
		}
	}
	return Subject{}, false
}

// Grades fetches the grades page for the currently selected period.
func (c *Client) Grades(ctx context.Context) (*GradesPage, error) {
	ctx, span := tracer.Start(ctx, "view:Grades")
	defer span.End()

	doc, err := c.fetchDocument(ctx, gradesPath, nil)
	if err != nil {
		return nil, err
	}
	return ParseGradesPage(doc)
}

// GradesFor fetches the grades page for a specific school year half.
func (c *Client) GradesFor(ctx context.Context, year schoolyear.SchoolYear, half schoolyear.Half) (*GradesPage, error) {
	ctx, span := tracer.Start(ctx, "view:GradesFor")
	defer span.End()

	query := url.Values{}
	key, value := year.QueryParam()
	query.Set(key, value)
	key, value = half.QueryParam()
	query.Set(key, value)

	doc, err := c.fetchDocument(ctx, gradesPath, query)
	if err != nil {
		return nil, err
	}
	return ParseGradesPage(doc)
}

var (
	subjectNameRegex  = regexp.MustCompile(`^(.*?)(?: \((\w{1,4})\))?$`)
	gradeDetailsRegex = regexp.MustCompile(`^(?:(.*) )?\((\d{2}\.\d{2}\.\d{4}), (.*)\)$`)
	gradeIDRegex      = regexp.MustCompile(`scoreId=(\d+)`)
)

// ParseGradesPage parses the /score/student page.
func ParseGradesPage(doc *goquery.Document) (*GradesPage, error) {
	page := &GradesPage{}
	behaviourSeen := false

	var parseErr error
	doc.Find(".score > tbody > tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		header, err := htmlutil.SelectFirst(row, "th", "subject name")
		if err != nil {
			parseErr = err
			return false
		}
		column, err := htmlutil.SelectFirst(row, "td", "grades column")
		if err != nil {
			parseErr = err
			return false
		}

		name := parseSubjectName(htmlutil.CleanText(header.Text()))

		if name.Full == behaviourRowName {
			behaviour, err := parseBehaviourRow(row, column)
			if err != nil {
				parseErr = err
				return false
			}
			page.Behaviour = behaviour
			behaviourSeen = true
			return true
		}

		subject, err := parseSubjectRow(row, name, column)
		if err != nil {
			parseErr = err
			return false
		}
		page.Subjects = append(page.Subjects, subject)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if !behaviourSeen {
		return nil, htmlutil.ElementNotFoundError{Name: "behaviour row", Selector: ".score > tbody > tr"}
	}

	year, err := selectedSchoolYear(doc)
	if err != nil {
		return nil, err
	}
	page.SchoolYear = year

	half, err := selectedHalf(doc)
	if err != nil {
		return nil, err
	}
	page.Half = half

	return page, nil
}

func parseSubjectName(text string) Name {
	match := subjectNameRegex.FindStringSubmatch(text)
	if match == nil {
		return Name{Full: text}
	}
	return Name{Full: match[1], Short: match[2]}
}

func parseSubjectRow(row *goquery.Selection, name Name, column *goquery.Selection) (Subject, error) {
	subject := Subject{Name: name}

	// the main column holds an alternating sequence of subject part
	// labels and grade anchors; grades belong to the last seen part
	gradesColumn := column.Find("td").First()
	if gradesColumn.Length() == 0 {
		gradesColumn = column
	}

	var parseErr error
	part := ""
	gradesColumn.Children().EachWithBreak(func(_ int, child *goquery.Selection) bool {
		switch {
		case child.HasClass("subjectPart"):
			part = strings.TrimSuffix(htmlutil.CleanText(child.Text()), ":")
		case goquery.NodeName(child) == "a":
			grade, err := parseGrade(child, part)
			if err != nil {
				parseErr = err
				return false
			}
			subject.Grades = append(subject.Grades, grade)
		}
		return true
	})
	if parseErr != nil {
		return Subject{}, parseErr
	}

	final := row.Find(".scoreFinal").First()
	if final.Length() > 0 {
		grade, err := parseFinalGrade(final)
		if err != nil {
			return Subject{}, err
		}
		subject.Final = &grade
	}

	return subject, nil
}

func parseBehaviourRow(row, column *goquery.Selection) (Behaviour, error) {
	behaviour := Behaviour{}

	var parseErr error
	column.Find("span > a").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
		ref, err := parseNotificationAnchor(anchor)
		if err != nil {
			parseErr = err
			return false
		}
		behaviour.Notifications = append(behaviour.Notifications, ref)
		return true
	})
	if parseErr != nil {
		return Behaviour{}, parseErr
	}

	final, err := htmlutil.SelectFirst(row, ".scoreFinal", "behaviour final grade")
	if err != nil {
		return Behaviour{}, err
	}
	behaviour.Final, err = parseFinalGrade(final)
	if err != nil {
		return Behaviour{}, err
	}

	return behaviour, nil
}

func parseFinalGrade(sel *goquery.Selection) (FinalGrade, error) {
	text := htmlutil.CleanText(sel.Text())

	if text == "U" {
		return FinalGrade{Kind: FinalGradeExcused}, nil
	}
	if sel.HasClass("scoreValueWarning") {
		switch text {
		case "5?":
			return FinalGrade{Kind: FinalGradeGradesWarning}, nil
		case "N?":
			return FinalGrade{Kind: FinalGradeAbsenceWarning}, nil
		case "5? N?", "N? 5?":
			return FinalGrade{Kind: FinalGradeGradesAndAbsenceWarning}, nil
		default:
			return FinalGrade{}, fmt.Errorf("unknown final grade warning: %q", text)
		}
	}

	value, err := strconv.Atoi(text)
	if err != nil {
		return FinalGrade{}, fmt.Errorf("invalid final grade %q: %w", text, err)
	}
	return FinalGrade{Kind: FinalGradeNumber, Value: value}, nil
}

func parseGrade(anchor *goquery.Selection, part string) (Grade, error) {
	value, err := htmlutil.SelectFirst(anchor, ".value", "grade value")
	if err != nil {
		return Grade{}, err
	}
	employee, err := htmlutil.SelectFirst(anchor, ".employee", "grade teacher")
	if err != nil {
		return Grade{}, err
	}

	grade := Grade{
		Value:       htmlutil.CleanText(value.Text()),
		Small:       anchor.HasClass("scoreSmall"),
		SubjectPart: part,
		Teacher:     Name{Short: htmlutil.CleanText(employee.Text())},
	}

	href := anchor.AttrOr("href", "")
	idMatch := gradeIDRegex.FindStringSubmatch(href)
	if idMatch == nil {
		return Grade{}, fmt.Errorf("grade id missing in href %q", href)
	}
	grade.ID, _ = strconv.Atoi(idMatch[1])

	// the title attribute carries the details:
	// "Description (02.10.2023, Jan Novák)"
	details := gradeDetailsRegex.FindStringSubmatch(anchor.AttrOr("title", ""))
	if details != nil {
		grade.Description = details[1]
		grade.Teacher.Full = details[3]
		received, err := schoolyear.ParseCzechDate(details[2])
		if err != nil {
			return Grade{}, err
		}
		grade.Received = received
	}

	return grade, nil
}
