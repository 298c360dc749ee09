package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	data := Dataset{
		Headers: []string{"id", "name", "pages"},
		Rows: []map[string]string{
			{"id": "a", "name": "Lease, signed", "pages": "3"},
			{"id": "b", "name": "Receipt"},
		},
	}
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "id,name,pages\na,\"Lease, signed\",3\nb,Receipt,\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}
