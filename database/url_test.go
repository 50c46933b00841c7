package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructDatabaseURL(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		dbName   string
		expected string
	}{
		{
			name:     "no database name returns base url",
			baseURL:  "postgres://u:p@localhost:5432/betboard",
			dbName:   "",
			expected: "postgres://u:p@localhost:5432/betboard",
		},
		{
			name:     "appends database and sslmode",
			baseURL:  "postgres://u:p@localhost:5432",
			dbName:   "betboard",
			expected: "postgres://u:p@localhost:5432/betboard?sslmode=disable",
		},
		{
			name:     "trailing slash trimmed",
			baseURL:  "postgres://u:p@localhost:5432/",
			dbName:   "betboard",
			expected: "postgres://u:p@localhost:5432/betboard?sslmode=disable",
		},
		{
			name:     "existing query parameters preserved",
			baseURL:  "postgres://u:p@localhost:5432?connect_timeout=5",
			dbName:   "betboard",
			expected: "postgres://u:p@localhost:5432/betboard?connect_timeout=5&sslmode=disable",
		},
		{
			name:     "explicit sslmode kept",
			baseURL:  "postgres://u:p@localhost:5432?sslmode=require",
			dbName:   "betboard",
			expected: "postgres://u:p@localhost:5432/betboard?sslmode=require",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ConstructDatabaseURL(tt.baseURL, tt.dbName))
		})
	}
}
