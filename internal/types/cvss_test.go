package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const criticalVector = "CVSS:3.0/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"

func TestExtractCVSSComponent(t *testing.T) {
	tests := []struct {
		vector    string
		component string
		want      string
	}{
		{criticalVector, "AV", "NETWORK"},
		{criticalVector, "AC", "LOW"},
		{criticalVector, "PR", "NONE"},
		{criticalVector, "UI", "NONE"},
		{criticalVector, "S", "UNCHANGED"},
		{criticalVector, "C", "HIGH"},
		{"CVSS:3.1/AV:P/AC:H/PR:L/UI:R/S:C/C:L/I:N/A:L", "AV", "PHYSICAL"},
		{"CVSS:3.1/AV:A/AC:H/PR:L/UI:R/S:C/C:L/I:N/A:L", "AV", "ADJACENT_NETWORK"},
		{"CVSS:3.1/AV:P/AC:H/PR:L/UI:R/S:C/C:L/I:N/A:L", "UI", "REQUIRED"},
		{"CVSS:3.1/AV:P/AC:H/PR:L/UI:R/S:C/C:L/I:N/A:L", "S", "CHANGED"},
		{criticalVector, ComponentSeverity, BandCritical},
		{"CVSS:3.0/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:N/A:N", ComponentSeverity, BandHigh},
		{"CVSS:3.0/AV:N/AC:L/PR:N/UI:N/S:U/C:L/I:N/A:N", ComponentSeverity, BandMedium},
		{"CVSS:3.0/AV:N/AC:H/PR:N/UI:R/S:U/C:L/I:N/A:N", ComponentSeverity, BandLow},
		{"CVSS:3.0/AV:N/AC:L/PR:N/UI:N/S:U/C:N/I:N/A:N", ComponentSeverity, BandNone},
	}

	for _, tt := range tests {
		t.Run(tt.vector+"/"+tt.component, func(t *testing.T) {
			got, err := ExtractCVSSComponent(tt.vector, tt.component)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractCVSSComponentErrors(t *testing.T) {
	_, err := ExtractCVSSComponent(criticalVector, "XX")
	assert.True(t, errors.Is(err, ErrUnknownComponent))

	_, err = ExtractCVSSComponent("CVSS:3.0/AC:L", "AV")
	assert.True(t, errors.Is(err, ErrComponentNotFound))

	_, err = ExtractCVSSComponent("CVSS:3.0/AV:Q", "AV")
	assert.True(t, errors.Is(err, ErrUnknownComponentValue))

	_, err = ExtractCVSSComponent("not a vector", ComponentSeverity)
	assert.Error(t, err)
}

func TestBaseScore(t *testing.T) {
	score, err := BaseScore(criticalVector)
	require.NoError(t, err)
	assert.InDelta(t, 9.8, score, 0.001)

	score, err = BaseScore("CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:N/A:N")
	require.NoError(t, err)
	assert.InDelta(t, 7.5, score, 0.001)

	score, err = BaseScore("AV:N/AC:L/Au:N/C:C/I:C/A:C")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, score, 0.001)
}

func TestCVSSVersion(t *testing.T) {
	assert.Equal(t, "3.0", CVSSVersion(criticalVector))
	assert.Equal(t, "3.1", CVSSVersion("CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:N/A:N"))
	assert.Equal(t, "4.0", CVSSVersion("CVSS:4.0/AV:N/AC:L/AT:N/PR:N/UI:N/VC:H/VI:H/VA:H/SC:N/SI:N/SA:N"))
	assert.Equal(t, "2.0", CVSSVersion("AV:N/AC:L/Au:N/C:C/I:C/A:C"))
}

func TestSeverityBand(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{9.5, BandCritical},
		{10, BandCritical},
		{9.0, BandHigh},
		{7.5, BandHigh},
		{7.0, BandMedium},
		{5.0, BandMedium},
		{4.0, BandLow},
		{1.0, BandLow},
		{0.1, BandNone},
		{0.05, BandNone},
		{0.0, BandNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SeverityBand(tt.score), "score %v", tt.score)
	}
}

func TestFlawSeverityBand(t *testing.T) {
	flaw := FromDocument(sampleDocument(t))
	assert.Equal(t, BandCritical, flaw.SeverityBand())

	flaw.Severity.CVSSVector = ""
	flaw.Severity.CVSSScore = ScoreOf(5.0)
	assert.Equal(t, BandMedium, flaw.SeverityBand())

	flaw.Severity.CVSSVector = "garbage"
	flaw.Severity.CVSSScore = NoScore
	assert.Equal(t, BandNone, flaw.SeverityBand())
}
