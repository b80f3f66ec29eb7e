package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type result struct {
	value string
	ok    bool
}

func run(fn func(string) (string, bool), in string) result {
	v, ok := fn(in)
	return result{v, ok}
}

func TestCity(t *testing.T) {
	tests := []struct {
		in   string
		want result
	}{
		{"São Paulo", result{"sãopaulo", true}},
		{"  Rio de Janeiro  ", result{"riodejaneiro", true}},
		{"curitiba", result{"curitiba", true}},
		{"", result{"", false}},
		{"   ", result{"", false}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, run(City, tt.in), "City(%q)", tt.in)
	}
}

func TestState(t *testing.T) {
	tests := []struct {
		in   string
		want result
	}{
		{" SP ", result{"sp", true}},
		{"Minas Gerais", result{"minas gerais", true}},
		{"", result{"", false}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, run(State, tt.in), "State(%q)", tt.in)
	}
}

func TestCountry(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		fallback string
		want     result
	}{
		{"alpha-2 kept", "BR", "", result{"br", true}},
		{"alpha-2 trimmed", " us ", "", result{"us", true}},
		{"single letter kept", "x", "", result{"x", true}},
		{"alpha-3", "BRA", "", result{"br", true}},
		{"alpha-3 lowercase", "prt", "", result{"pt", true}},
		{"numeric", "076", "", result{"br", true}},
		{"known name", "Brasil", "", result{"br", true}},
		{"known name english", "United States", "", result{"us", true}},
		{"unknown uses default", "Atlantis", "", result{DefaultCountry, true}},
		{"unknown uses fallback", "Atlantis", "PT", result{"pt", true}},
		{"unknown alpha-3", "ZZZ", "", result{DefaultCountry, true}},
		{"empty", "", "", result{"", false}},
		{"blank", "   ", "", result{"", false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := Country(tt.in, tt.fallback)
			assert.Equal(t, tt.want, result{v, ok})
		})
	}
}

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, result{"5511912345678", true}, run(DigitsOnly, "+55 (11) 91234-5678"))
	assert.Equal(t, result{"", false}, run(DigitsOnly, "no digits"))
	assert.Equal(t, result{"", false}, run(DigitsOnly, ""))
}

func TestDateToYYYYMMDD(t *testing.T) {
	tests := []struct {
		in   string
		want result
	}{
		{"17/08/2000", result{"20000817", true}},
		{"2000-08-17", result{"20000817", true}},
		{"20000817", result{"20000817", true}},
		{"17/08", result{"17/08", true}},
		{"--", result{"", false}},
		{"", result{"", false}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, run(DateToYYYYMMDD, tt.in), "DateToYYYYMMDD(%q)", tt.in)
	}
}

func TestZip(t *testing.T) {
	assert.Equal(t, result{"01310100", true}, run(Zip, "01310-100"))
	assert.Equal(t, result{"sw1a1aa", true}, run(Zip, "sw1a 1aa"))
	assert.Equal(t, result{"", false}, run(Zip, " - "))
}
