package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
)

var ErrLicenseNameNotFound = errors.New("could not find a name field in the license document")

// nameLine matches the holder name on an OCR'd license document,
// e.g. "Name: St. Mary General Hospital".
var nameLine = regexp.MustCompile(`(?i)name[:\s]+([A-Za-z][A-Za-z .,'&-]*)`)

// TextExtractor pulls plain text out of an uploaded image. The production
// implementation shells out to tesseract; tests substitute a fake.
type TextExtractor interface {
	ExtractText(ctx context.Context, imagePath string) (string, error)
}

// TesseractExtractor runs the tesseract CLI against the image and reads the
// recognized text from stdout.
type TesseractExtractor struct {
	Binary string
}

func (t *TesseractExtractor) ExtractText(ctx context.Context, imagePath string) (string, error) {
	bin := t.Binary
	if bin == "" {
		bin = "tesseract"
	}
	cmd := exec.CommandContext(ctx, bin, imagePath, "stdout")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out.String(), nil
}

// NameMismatchError reports a similarity score below the verification
// threshold. Its message contains both compared names.
type NameMismatchError struct {
	Extracted string
	Expected  string
	Score     float64
}

func (e *NameMismatchError) Error() string {
	return fmt.Sprintf("license name %q does not match %q (similarity %.2f)",
		e.Extracted, e.Expected, e.Score)
}

// VerifyResult is the outcome of a successful license check.
type VerifyResult struct {
	Verified      bool    `json:"verified"`
	ExtractedName string  `json:"extractedName"`
	Score         float64 `json:"score"`
}

// LicenseVerifier performs OCR on an uploaded license document, extracts the
// holder name, and fuzzy-matches it against the supplied hospital name. The
// final approval is simulated: after the fixed delay the check always
// succeeds once the name matched.
type LicenseVerifier struct {
	Extractor TextExtractor
	Threshold float64
	Delay     time.Duration
}

func NewLicenseVerifier(extractor TextExtractor, delay time.Duration) *LicenseVerifier {
	return &LicenseVerifier{Extractor: extractor, Threshold: 0.6, Delay: delay}
}

func (v *LicenseVerifier) Verify(ctx context.Context, imagePath, expectedName string) (VerifyResult, error) {
	text, err := v.Extractor.ExtractText(ctx, imagePath)
	if err != nil {
		return VerifyResult{}, err
	}

	extracted, ok := ExtractLicenseName(text)
	if !ok {
		return VerifyResult{}, ErrLicenseNameNotFound
	}

	score := Similarity(extracted, expectedName)
	if score < v.Threshold {
		return VerifyResult{}, &NameMismatchError{Extracted: extracted, Expected: expectedName, Score: score}
	}

	// Simulated external verification round-trip.
	if v.Delay > 0 {
		select {
		case <-time.After(v.Delay):
		case <-ctx.Done():
			return VerifyResult{}, ctx.Err()
		}
	}

	return VerifyResult{Verified: true, ExtractedName: extracted, Score: score}, nil
}

// ExtractLicenseName pulls the holder name out of OCR'd license text.
func ExtractLicenseName(text string) (string, bool) {
	m := nameLine.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// Similarity returns a 0..1 ratio between two names, case-insensitive, based
// on Levenshtein distance over the longer of the two.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}
