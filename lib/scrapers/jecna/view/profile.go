package view

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"jecnaapi/lib/htmlutil"
	"jecnaapi/lib/schoolyear"

	"github.com/PuerkitoBio/goquery"
)

// Guardian is a student's parent or legal guardian.
type Guardian struct {
	Name  string
	Phone string
	Email string
}

// Student is the parsed student profile page.
type Student struct {
	FullName     string
	Username     string
	SchoolMail   string
	PrivateMail  string
	PhoneNumbers []string
	// PhotoPath is the relative URL of the profile photo, if set.
	PhotoPath  string
	Age        int
	BirthDate  time.Time
	BirthPlace string
	Address    string
	ClassName  string
	// ClassGroups is the raw group listing, e.g. "A<1,2>, O".
	ClassGroups string
	// ClassNumber is the student's number in the class register.
	ClassNumber int
	Guardians   []Guardian
}

// StudentProfile fetches a student's profile page by username.
func (c *Client) StudentProfile(ctx context.Context, username string) (*Student, error) {
	ctx, span := tracer.Start(ctx, "view:StudentProfile")
	defer span.End()

	doc, err := c.fetchDocument(ctx, studentPath+"/"+username, nil)
	if err != nil {
		return nil, err
	}
	return ParseStudentProfile(doc)
}

var (
	emailRegex = regexp.MustCompile(`[\w.+-]+@[\w-]+(?:\.[\w-]+)+`)
	phoneRegex = regexp.MustCompile(`(?:\+\d{3} ?)?\d{3} ?\d{3} ?\d{3}`)
	ageRegex   = regexp.MustCompile(`(\d+)`)
)

// ParseStudentProfile parses a /student/<username> page.
func ParseStudentProfile(doc *goquery.Document) (*Student, error) {
	table, err := htmlutil.SelectFirst(doc.Selection, ".userprofile", "student profile table")
	if err != nil {
		return nil, err
	}

	rows := tableRowsByLabel(table)
	student := &Student{}

	value, err := requireRow(rows, "Celé jméno")
	if err != nil {
		return nil, err
	}
	student.FullName = value

	value, err = requireRow(rows, "Uživatelské jméno")
	if err != nil {
		return nil, err
	}
	student.Username = value

	value, err = requireRow(rows, "Školní e-mail")
	if err != nil {
		return nil, err
	}
	student.SchoolMail = emailRegex.FindString(value)

	if value, ok := rowText(rows, "Soukromý e-mail"); ok {
		student.PrivateMail = emailRegex.FindString(value)
	}
	if value, ok := rowText(rows, "Telefon"); ok {
		student.PhoneNumbers = phoneRegex.FindAllString(value, -1)
	}
	if value, ok := rowText(rows, "Věk"); ok {
		if match := ageRegex.FindStringSubmatch(value); match != nil {
			student.Age, _ = strconv.Atoi(match[1])
		}
	}
	if value, ok := rowText(rows, "Narození"); ok {
		// "1.1.2000, Praha"
		datePart, place, found := strings.Cut(value, ",")
		if date, err := schoolyear.ParseCzechDate(datePart); err == nil {
			student.BirthDate = date
		}
		if found {
			student.BirthPlace = strings.TrimSpace(place)
		}
	}
	if value, ok := rowText(rows, "Trvalá adresa"); ok {
		student.Address = value
	}
	if value, ok := rowText(rows, "Třída, skupiny"); ok {
		// "C4b, skupiny: A<1,2>, O"
		class, groups, found := strings.Cut(value, ",")
		student.ClassName = strings.TrimSpace(class)
		if found {
			student.ClassGroups = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(groups), "skupiny:"))
		}
	}
	if value, ok := rowText(rows, "Číslo v tříd. výkazu"); ok {
		student.ClassNumber, _ = strconv.Atoi(value)
	}

	student.PhotoPath = doc.Find(".profilephoto .image img").First().AttrOr("src", "")

	doc.Find("ul.list li").Each(func(_ int, item *goquery.Selection) {
		if guardian, ok := parseGuardian(htmlutil.CleanText(item.Text())); ok {
			student.Guardians = append(student.Guardians, guardian)
		}
	})

	return student, nil
}

func rowText(rows map[string]*goquery.Selection, label string) (string, bool) {
	value, ok := rows[label]
	if !ok {
		return "", false
	}
	return htmlutil.CleanText(value.Text()), true
}

func requireRow(rows map[string]*goquery.Selection, label string) (string, error) {
	value, ok := rowText(rows, label)
	if !ok {
		return "", htmlutil.ElementNotFoundError{Name: label + " row", Selector: ".userprofile tr"}
	}
	return value, nil
}

// parseGuardian reads a "Jana Nováková, +420 777 123 456 jana@example.com"
// list entry. Entries without a phone or email are kept with just the
// name.
func parseGuardian(text string) (Guardian, bool) {
	name, rest, _ := strings.Cut(text, ",")
	name = strings.TrimSpace(name)
	if name == "" {
		return Guardian{}, false
	}
	return Guardian{
		Name:  name,
		Phone: strings.TrimSpace(phoneRegex.FindString(rest)),
		Email: emailRegex.FindString(rest),
	}, true
}
