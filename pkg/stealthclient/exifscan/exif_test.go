package exifscan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScanWithoutEXIFReturnsZeroFields(t *testing.T) {
	fields, err := Scan([]byte("not a real jpeg"))
	require.NoError(t, err)
	require.Equal(t, Fields{}, fields)
}

func TestNormalizeLowercasesAndTrims(t *testing.T) {
	require.Equal(t, "apple", normalize("  Apple  "))
}

func TestParseCaptureTimeRoundTrips(t *testing.T) {
	want := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	formatted := want.Format("2006-01-02T15:04:05")

	got, err := ParseCaptureTime(formatted)
	require.NoError(t, err)
	require.True(t, want.Equal(got))
}

func TestParseCaptureTimeRejectsMalformedInput(t *testing.T) {
	_, err := ParseCaptureTime("not-a-timestamp")
	require.Error(t, err)
}
