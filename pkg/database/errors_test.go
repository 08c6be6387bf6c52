package database

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPQError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantNil    bool
		wantStatus int
		wantCode   string
		wantDetail string
	}{
		{
			name:       "duplicate email",
			err:        &pq.Error{Code: "23505", Constraint: "users_email_key"},
			wantStatus: http.StatusConflict,
			wantCode:   "CONFLICT",
		},
		{
			name:       "missing foreign row",
			err:        &pq.Error{Code: "23503", Constraint: "applications_service_id_fkey"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
		{
			name:       "not null",
			err:        &pq.Error{Code: "23502", Column: "title"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
			wantDetail: "title",
		},
		{
			name:       "status check",
			err:        &pq.Error{Code: "23514", Constraint: "applications_status_valid"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
			wantDetail: "status",
		},
		{
			name:       "wrapped pq error",
			err:        fmt.Errorf("insert user: %w", &pq.Error{Code: "23514", Constraint: "users_role_valid"}),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
			wantDetail: "role",
		},
		{
			name:    "unmapped code",
			err:     &pq.Error{Code: "40001"},
			wantNil: true,
		},
		{
			name:    "not a pq error",
			err:     fmt.Errorf("boom"),
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapPQError(tt.err)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantStatus, got.StatusCode)
			assert.Equal(t, tt.wantCode, got.Code)
			if tt.wantDetail != "" {
				assert.Contains(t, got.Details, tt.wantDetail)
			}
		})
	}
}

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := migrationFiles.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "00001_init.sql", entries[0].Name())
}
