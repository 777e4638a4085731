package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	set := NewKeywordSet([]string{"resultado"})
	assert.Equal(t, []string{"resultado"}, Scan("RESULTADO final", set))
}

func TestScanReturnsLowerCasedMatchesInOrder(t *testing.T) {
	t.Parallel()

	set := NewKeywordSet([]string{"Resultado", "Homologação", "Classificados"})
	got := Scan("Lista de CLASSIFICADOS e resultado da HOMOLOGAÇÃO", set)
	assert.Equal(t, []string{"resultado", "homologação", "classificados"}, got)
}

func TestScanNoMatchReturnsEmptySlice(t *testing.T) {
	t.Parallel()

	got := Scan("Edital aberto", NewKeywordSet([]string{"resultado"}))
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got = Scan("anything", NewKeywordSet(nil))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestNewKeywordSetNormalises(t *testing.T) {
	t.Parallel()

	set := NewKeywordSet([]string{" Resultado ", "resultado", "", "  ", "Edital"})
	assert.Equal(t, []string{"resultado", "edital"}, set.Words())
	assert.Equal(t, 2, set.Len())

	words := set.Words()
	words[0] = "mutated"
	assert.Equal(t, "resultado", set.Words()[0])
}
