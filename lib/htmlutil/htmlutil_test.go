package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestSelectFirst(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<form><input name="token3" value="abc123"></form>`,
	))
	require.NoError(t, err)

	sel, err := SelectFirst(doc.Selection, "input[name=token3]", "token3")
	require.NoError(t, err)
	require.Equal(t, "abc123", sel.AttrOr("value", ""))

	_, err = SelectFirst(doc.Selection, "input[name=missing]", "missing input")
	var notFound ElementNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "missing input", notFound.Name)
}

func TestCleanText(t *testing.T) {
	require.Equal(t, "Jan Novák", CleanText("  Jan \t\n  Novák "))
}

func TestGetAnchors(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<ul><li><a href="/ucitel/Au">Augusta  Pavel</a></li><li><a href="/ucitel/Bi">Bílek</a></li></ul>`,
	))
	require.NoError(t, err)

	anchors := GetAnchors(doc.Find("ul a"))
	require.Equal(t, []Anchor{
		{Name: "Augusta Pavel", Href: "/ucitel/Au"},
		{Name: "Bílek", Href: "/ucitel/Bi"},
	}, anchors)
}
