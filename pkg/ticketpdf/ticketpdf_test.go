package ticketpdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderProducesPDF(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, Slip{
		Clinic:       "Clínica Central",
		Code:         "A-C-012",
		PreviousCode: "A-C-004",
		PatientName:  "José Núñez",
		Doctor:       "Dra. Ana Gómez",
		Motive:       "consulta",
		IssuedAt:     time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC),
		Reprint:      true,
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}
