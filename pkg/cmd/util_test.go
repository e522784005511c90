package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voyagekit/stevedore/pkg/config"
	"github.com/voyagekit/stevedore/pkg/migrator"
	"github.com/voyagekit/stevedore/pkg/postgres"
	"github.com/voyagekit/stevedore/pkg/transfer"
)

func TestLoadPlan(t *testing.T) {
	cfg := &config.Config{Tables: []config.Table{
		{Name: "trips"},
		{Name: "guests", DependsOn: []string{"trips"}, Required: true},
	}}

	plan, err := loadPlan(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"trips", "guests"}, plan.InsertOrder)
	assert.Equal(t, []string{"guests", "trips"}, plan.DeleteOrder)

	guests, ok := plan.Table("guests")
	require.True(t, ok)
	assert.True(t, guests.Required)
}

func TestLoadPlanNoTables(t *testing.T) {
	_, err := loadPlan(&config.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tables configured")
}

func TestLoadPlanUnknownDependency(t *testing.T) {
	cfg := &config.Config{Tables: []config.Table{
		{Name: "guests", DependsOn: []string{"trips"}},
	}}

	_, err := loadPlan(cfg)
	require.Error(t, err)

	var cfgErr *config.Error
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoadPlanCycle(t *testing.T) {
	cfg := &config.Config{Tables: []config.Table{
		{Name: "a", DependsOn: []string{"b"}},
		{Name: "b", DependsOn: []string{"a"}},
	}}

	_, err := loadPlan(cfg)
	require.Error(t, err)

	var cycle *transfer.CycleError
	require.ErrorAs(t, err, &cycle)
}

func TestExpectationsFor(t *testing.T) {
	cfg := &config.Config{Expectations: []config.Expectation{
		{Migration: "001_init", Kind: "table", Name: "trips"},
		{Migration: "002_guests", Kind: "row_count", Name: "guests", MinRows: 1},
		{Migration: "001_init", Kind: "function", Name: "refresh_stats"},
	}}

	exps := expectationsFor(cfg, "001_init")
	require.Len(t, exps, 2)
	assert.Equal(t, migrator.ExpectTable, exps[0].Kind)
	assert.Equal(t, "trips", exps[0].Name)
	assert.Equal(t, migrator.ExpectFunction, exps[1].Kind)

	assert.Empty(t, expectationsFor(cfg, "003_other"))
}

func TestConnectWithoutURL(t *testing.T) {
	_, err := connect(context.Background(), &config.Config{})
	require.Error(t, err)

	var cfgErr *config.Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "database.url", cfgErr.Field)
}

func TestConnectMalformedURL(t *testing.T) {
	cfg := &config.Config{Database: config.Database{URL: "not-a-dsn"}}

	_, err := connect(context.Background(), cfg)
	require.Error(t, err)

	var connErr *postgres.ConnectionError
	require.ErrorAs(t, err, &connErr)
}
