package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{
		{"serve"},
		{"billing", "run"},
		{"billing", "simulate"},
		{"export"},
		{"backfill-snapshots"},
		{"backup"},
		{"restore"},
		{"seed"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestRestoreNeedsArchive(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"restore"})
	assert.Error(t, root.Execute())
}

func TestParseMonths(t *testing.T) {
	months, err := parseMonths(" 9, 10,11 ")
	require.NoError(t, err)
	assert.Equal(t, []int{9, 10, 11}, months)

	months, err = parseMonths("")
	require.NoError(t, err)
	assert.Nil(t, months)

	_, err = parseMonths("9,13")
	assert.Error(t, err)
	_, err = parseMonths("sept")
	assert.Error(t, err)
}

func TestExportFlagDefaults(t *testing.T) {
	cmd := newExportCmd()
	format, err := cmd.Flags().GetString("format")
	require.NoError(t, err)
	assert.Equal(t, "cuaderno", format)

	require.NoError(t, cmd.Flags().Parse([]string{"--status", "unpaid,paid", "--type", "employee"}))
	statuses, err := cmd.Flags().GetStringSlice("status")
	require.NoError(t, err)
	assert.Equal(t, []string{"unpaid", "paid"}, statuses)
}
