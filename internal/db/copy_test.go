package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "tract_metrics", []string{"geoid", "properties"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"tract_metrics"}, []string{"geoid", "properties"}).WillReturnResult(3)

	rows := [][]any{
		{"24001000100", "{}"},
		{"24001000200", "{}"},
		{"24001000300", "{}"},
	}
	n, err := CopyFrom(context.Background(), mock, "tract_metrics", []string{"geoid", "properties"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"tract_metrics"}, []string{"geoid"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{"24001000100"}}
	_, err = CopyFrom(context.Background(), mock, "tract_metrics", []string{"geoid"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO tract_metrics")
	assert.NoError(t, mock.ExpectationsWereMet())
}
