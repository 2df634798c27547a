package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchCmd_RunsInitialSyncThenExitsOnCancel(t *testing.T) {
	testDir := t.TempDir()
	createTestProject(t, testDir)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"watch", testDir})
	cmd.SetContext(ctx)

	err := cmd.Execute()
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "running initial sync")
	assert.FileExists(t, filepath.Join(testDir, ".semindex", "snapshot.json"))
}
