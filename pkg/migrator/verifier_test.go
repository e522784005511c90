package migrator_test

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voyagekit/stevedore/pkg/migrator"
	"github.com/voyagekit/stevedore/pkg/postgres"
)

func TestVerifyTableExpectation(t *testing.T) {
	t.Run("satisfied", func(t *testing.T) {
		db := &fakeDB{queryFunc: func(string, ...any) (postgres.Rows, error) {
			return &fakeRows{data: [][]any{{int64(1)}}}, nil
		}}

		result, err := migrator.NewVerifier(db).Verify(context.Background(), migrator.Expectation{
			Kind: migrator.ExpectTable,
			Name: "guests",
		})
		require.NoError(t, err)
		assert.True(t, result.Satisfied)
	})

	t.Run("unsatisfied", func(t *testing.T) {
		db := &fakeDB{}

		result, err := migrator.NewVerifier(db).Verify(context.Background(), migrator.Expectation{
			Kind: migrator.ExpectTable,
			Name: "guests",
		})
		require.Error(t, err)
		assert.False(t, result.Satisfied)

		var warning *migrator.VerificationWarning
		require.ErrorAs(t, err, &warning)
		assert.Contains(t, warning.Error(), "already committed")

		// A broken or unsatisfied probe is never a migration failure.
		var migErr *migrator.MigrationError
		assert.False(t, errors.As(err, &migErr))
	})
}

func TestVerifyFunctionExpectation(t *testing.T) {
	db := &fakeDB{queryFunc: func(query string, _ ...any) (postgres.Rows, error) {
		if strings.Contains(query, "pg_proc") {
			return &fakeRows{data: [][]any{{int64(1)}}}, nil
		}
		return &fakeRows{}, nil
	}}

	result, err := migrator.NewVerifier(db).Verify(context.Background(), migrator.Expectation{
		Kind: migrator.ExpectFunction,
		Name: "touch",
	})
	require.NoError(t, err)
	assert.True(t, result.Satisfied)
}

func TestVerifyRowCountExpectation(t *testing.T) {
	db := &fakeDB{queryFunc: func(string, ...any) (postgres.Rows, error) {
		return &fakeRows{data: [][]any{{3}}}, nil
	}}

	verifier := migrator.NewVerifier(db)

	result, err := verifier.Verify(context.Background(), migrator.Expectation{
		Kind:    migrator.ExpectRowCount,
		Name:    "trips",
		MinRows: 2,
	})
	require.NoError(t, err)
	assert.True(t, result.Satisfied)

	_, err = verifier.Verify(context.Background(), migrator.Expectation{
		Kind:    migrator.ExpectRowCount,
		Name:    "trips",
		MinRows: 10,
	})

	var warning *migrator.VerificationWarning
	require.ErrorAs(t, err, &warning)
	assert.Contains(t, warning.Detail, "has 3 rows")
}

func TestVerifyProbeError(t *testing.T) {
	boom := errors.New("connection reset")
	db := &fakeDB{queryFunc: func(string, ...any) (postgres.Rows, error) {
		return nil, boom
	}}

	result, err := migrator.NewVerifier(db).Verify(context.Background(), migrator.Expectation{
		Kind: migrator.ExpectTable,
		Name: "guests",
	})
	require.Error(t, err)
	assert.False(t, result.Satisfied)

	// The probe itself being broken still surfaces as a warning, not a
	// migration error, since the schema change may have applied.
	var warning *migrator.VerificationWarning
	require.ErrorAs(t, err, &warning)
	assert.ErrorIs(t, err, boom)
}

func TestVerifyUnknownKind(t *testing.T) {
	_, err := migrator.NewVerifier(&fakeDB{}).Verify(context.Background(), migrator.Expectation{Kind: "nope"})
	require.Error(t, err)

	var warning *migrator.VerificationWarning
	assert.False(t, errors.As(err, &warning))
}
