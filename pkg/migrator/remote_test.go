package migrator_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voyagekit/stevedore/pkg/migrator"
)

func TestRemoteExecute(t *testing.T) {
	var (
		gotAuth string
		gotBody map[string]string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	remote := migrator.NewRemoteExecutor(srv.URL, "sekrit")
	require.NoError(t, remote.Execute(context.Background(), "CREATE TABLE trips (id INT);"))

	assert.Equal(t, "Bearer sekrit", gotAuth)
	assert.Equal(t, "CREATE TABLE trips (id INT);", gotBody["query"])
}

func TestRemoteExecuteNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"syntax error at or near CREAT"}`))
	}))
	defer srv.Close()

	err := migrator.NewRemoteExecutor(srv.URL, "sekrit").Execute(context.Background(), "CREAT TABLE;")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "syntax error at or near CREAT")
}

func TestExecuteRemoteMigration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	db := &fakeDB{}
	exec := migrator.New(migrator.Config{
		Database:         db,
		Remote:           migrator.NewRemoteExecutor(srv.URL, "sekrit"),
		StevedoreVersion: "1.0.0",
	})

	results, err := exec.Execute(context.Background(), []*migrator.Migration{{
		Version: "001_init",
		Script:  "CREATE TABLE trips (id INT);",
	}})
	require.NoError(t, err)
	assert.Equal(t, migrator.StatusSuccess, results[0].Status)
	assert.Equal(t, migrator.RemoteRevision, results[0].Revision.Kind)

	// The payload goes over HTTP, not the direct connection.
	for _, stmt := range db.execs {
		assert.NotContains(t, stmt, "CREATE TABLE trips")
	}
}

func TestExecuteRemoteMigrationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "permission denied", http.StatusForbidden)
	}))
	defer srv.Close()

	db := &fakeDB{}
	exec := migrator.New(migrator.Config{
		Database:         db,
		Remote:           migrator.NewRemoteExecutor(srv.URL, "sekrit"),
		StevedoreVersion: "1.0.0",
	})

	_, err := exec.Execute(context.Background(), []*migrator.Migration{{
		Version: "001_init",
		Script:  "CREATE TABLE trips (id INT);",
	}})

	var migErr *migrator.MigrationError
	require.ErrorAs(t, err, &migErr)
	assert.Equal(t, "001_init", migErr.Version)
	assert.True(t, strings.Contains(migErr.Error(), "permission denied"))
}
