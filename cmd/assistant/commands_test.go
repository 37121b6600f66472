package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexCommand_EmptyFolder(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "assistant.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("knowledge:\n  documents_dir: "+dir+"\n"), 0o600))

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ASSISTANT_AI_OPENAI_API_KEY", "")
	t.Setenv("ASSISTANT_KNOWLEDGE_DOCUMENTS_DIR", "")
	t.Setenv("CONFIG_FILE", "")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"index", "--config", cfgPath})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	var stats indexStats
	require.NoError(t, json.Unmarshal(out.Bytes(), &stats))
	assert.Equal(t, 0, stats.Documents)
	assert.Equal(t, 0, stats.Chunks)
	assert.Equal(t, 1536, stats.Dimensions)
	assert.Equal(t, dir, stats.Folder)
}

func TestIndexCommand_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ASSISTANT_AI_OPENAI_API_KEY", "")
	t.Setenv("CONFIG_FILE", "")
	configFile = ""

	cmd := newRootCmd()
	cmd.SetArgs([]string{"index"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}
