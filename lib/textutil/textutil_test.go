package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFoldDiacritics(t *testing.T) {
	require.Equal(t, "Novak", FoldDiacritics("Novák"))
	require.Equal(t, "Telesna vychova", FoldDiacritics("Tělesná výchova"))
	require.Equal(t, "rizek", FoldDiacritics("řízek"))
	require.Equal(t, "plain", FoldDiacritics("plain"))
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "jannovak", NormalizeName("Jan Novák"))
	require.Equal(t, NormalizeName("Marie  Dvořáková"), NormalizeName("marie dvorakova"))
	require.Equal(t, "ing.petrsvoboda", NormalizeName(" Ing. Petr Svoboda "))
}
