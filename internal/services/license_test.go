package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractText(ctx context.Context, imagePath string) (string, error) {
	return f.text, f.err
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("St. Mary Hospital", "st. mary hospital"))
	assert.Equal(t, 1.0, Similarity("  Clinic  ", "clinic"))
	assert.Equal(t, 1.0, Similarity("", ""))

	// One edit over 8 characters.
	assert.InDelta(t, 0.875, Similarity("hospital", "hospitel"), 1e-9)

	assert.Less(t, Similarity("City General Hospital", "Rural Dental Practice"), 0.6)
	assert.GreaterOrEqual(t, Similarity("City General Hospital", "City Genral Hospital"), 0.6)
}

func TestExtractLicenseName(t *testing.T) {
	text := "MEDICAL OPERATING LICENSE\nName: St. Mary General Hospital\nIssued: 2021"
	name, ok := ExtractLicenseName(text)
	require.True(t, ok)
	assert.Equal(t, "St. Mary General Hospital", name)

	_, ok = ExtractLicenseName("nothing useful here 12345")
	assert.False(t, ok)
}

func TestVerify_Match(t *testing.T) {
	v := NewLicenseVerifier(&fakeExtractor{text: "License\nName: St. Mary General Hospital\n"}, 0)

	result, err := v.Verify(context.Background(), "license.png", "St Mary General Hospital")
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, "St. Mary General Hospital", result.ExtractedName)
	assert.GreaterOrEqual(t, result.Score, 0.6)
}

func TestVerify_Mismatch(t *testing.T) {
	v := NewLicenseVerifier(&fakeExtractor{text: "Name: Quick Dental Studio"}, 0)

	_, err := v.Verify(context.Background(), "license.png", "St Mary General Hospital")
	var mismatch *NameMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Contains(t, err.Error(), "Quick Dental Studio")
	assert.Contains(t, err.Error(), "St Mary General Hospital")
	assert.Less(t, mismatch.Score, 0.6)
}

func TestVerify_NameNotFound(t *testing.T) {
	v := NewLicenseVerifier(&fakeExtractor{text: "blurry scan ###"}, 0)
	_, err := v.Verify(context.Background(), "license.png", "Anything")
	assert.ErrorIs(t, err, ErrLicenseNameNotFound)
}

func TestVerify_ExtractorFailure(t *testing.T) {
	wantErr := errors.New("tesseract exploded")
	v := NewLicenseVerifier(&fakeExtractor{err: wantErr}, 0)
	_, err := v.Verify(context.Background(), "license.png", "Anything")
	assert.ErrorIs(t, err, wantErr)
}
