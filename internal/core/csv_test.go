package core

import (
	"strings"
	"testing"

	"exoplanet_service/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObservations(t *testing.T) {
	input := "\xEF\xBB\xBF# Kepler cumulative export\n" +
		"KOI_PERIOD, koi_duration ,koi_depth,koi_prad,koi_model_snr,koi_steff,kepoi_name\n" +
		"# comment between rows\n" +
		"9.488,2.957,615.8,2.26,35.8,5455,K00752.01\n" +
		"54.41,4.507,874.8,2.83,25.8,,K00752.02\n"

	rows, err := ParseObservations(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 9.488, rows[0][model.FieldPeriod])
	assert.Equal(t, 5455.0, rows[0][model.FieldStellarTemp])
	_, ok := rows[1].Get(model.FieldStellarTemp)
	assert.False(t, ok, "empty optional value must be absent")
	assert.NotContains(t, rows[0], "kepoi_name")
}

func TestParseObservationsErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		field   string
		message string
	}{
		{
			name:    "empty file",
			input:   "",
			message: "empty",
		},
		{
			name:    "missing columns",
			input:   "koi_period,koi_duration,koi_prad\n1,2,3\n",
			message: "koi_depth, koi_model_snr",
		},
		{
			name:    "header only",
			input:   observationHeader + "\n",
			message: "no records",
		},
		{
			name:    "not a number",
			input:   observationHeader + "\n1,2,3,4,5,1,0\n1,abc,3,4,5,1,0\n",
			field:   model.FieldDuration,
			message: "line 3",
		},
		{
			name:    "out of range",
			input:   observationHeader + "\n0,2,3,4,5,1,0\n",
			field:   model.FieldPeriod,
			message: "greater than 0",
		},
		{
			name:    "missing required value",
			input:   observationHeader + "\n1,2,,4,5,1,0\n",
			field:   model.FieldDepth,
			message: "required",
		},
		{
			name:    "malformed quoting",
			input:   observationHeader + "\n1,2,\"3,4,5,1,0\n",
			message: "line",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseObservations(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrValidation)

			var verr *model.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Contains(t, verr.Message, tt.message)
		})
	}
}

func TestScanDataset(t *testing.T) {
	sum, err := ScanDataset(strings.NewReader(datasetCSV(9)))
	require.NoError(t, err)
	assert.Equal(t, 9, sum.Samples)
	assert.Equal(t, 3, sum.ByLabel[model.LabelFalsePositive])

	alt := "koi_period,koi_duration,koi_depth,koi_prad,koi_model_snr,label\n1,2,3,4,5,false_positive\n"
	sum, err = ScanDataset(strings.NewReader(alt))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.ByLabel[model.LabelFalsePositive])

	_, err = ScanDataset(strings.NewReader(observationCSV(3)))
	assert.ErrorContains(t, err, "missing label column")

	bad := "koi_period,koi_duration,koi_depth,koi_prad,koi_model_snr,koi_disposition\n1,2,3,4,5,PLANET\n"
	_, err = ScanDataset(strings.NewReader(bad))
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.ErrorContains(t, err, "PLANET")
}

func TestCheckFeatures(t *testing.T) {
	f, err := CheckFeatures(sampleFeatures())
	require.NoError(t, err)
	assert.Len(t, f, len(sampleFeatures()))

	withUnknown := sampleFeatures()
	withUnknown["koi_color"] = 1
	_, err = CheckFeatures(withUnknown)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "koi_color", verr.Field)

	missing := sampleFeatures()
	delete(missing, model.FieldSNR)
	_, err = CheckFeatures(missing)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, model.FieldSNR, verr.Field)

	negative := sampleFeatures()
	negative[model.FieldImpact] = -0.1
	_, err = CheckFeatures(negative)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = CheckFeatures(nil)
	assert.ErrorIs(t, err, model.ErrValidation)
}
