package checklist

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robolab-hub/robolab-progress-hub/internal/domain/checklist"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/shared"
)

const validYAML = `robot_key: otto
robot_name: Otto DIY Biped
levels:
  - key: assembly
    name: Assembly
    items:
      - key: frame
        title: Assemble the frame
        difficulty: easy
      - key: servos
        title: Mount the servos
  - key: first_steps
    name: First Steps
    items:
      - key: walk
        title: Make Otto walk
        difficulty: hard
`

func writeChecklist(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoaderLoadsValidFiles(t *testing.T) {
	dir := t.TempDir()
	writeChecklist(t, dir, "otto.yaml", validYAML)

	loader := NewLoader(dir)
	require.NoError(t, loader.Load())

	cl, err := loader.Get(context.Background(), "otto")
	require.NoError(t, err)
	assert.Equal(t, "otto", cl.RobotKey)
	assert.Equal(t, "Otto DIY Biped", cl.RobotName)
	require.Len(t, cl.Levels, 2)
	assert.Equal(t, "assembly", cl.Levels[0].Key)
	require.Len(t, cl.Levels[0].Items, 2)
	assert.Equal(t, checklist.DifficultyEasy, cl.Levels[0].Items[0].Difficulty)
	assert.Equal(t, checklist.Difficulty(""), cl.Levels[0].Items[1].Difficulty)

	robots, err := loader.Robots(context.Background())
	require.NoError(t, err)
	require.Len(t, robots, 1)
	assert.Equal(t, "otto", robots[0].Key)
}

func TestLoaderUnknownRobot(t *testing.T) {
	dir := t.TempDir()
	writeChecklist(t, dir, "otto.yaml", validYAML)

	loader := NewLoader(dir)
	require.NoError(t, loader.Load())

	_, err := loader.Get(context.Background(), "nosuchbot")
	assert.ErrorIs(t, err, shared.ErrRobotNotFound)
}

func TestLoaderRejectsKeyMismatch(t *testing.T) {
	dir := t.TempDir()
	// Filename and declared robot_key must agree.
	writeChecklist(t, dir, "wrongname.yaml", validYAML)

	loader := NewLoader(dir)
	err := loader.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
}

func TestLoaderRejectsMalformedFiles(t *testing.T) {
	cases := map[string]string{
		"duplicate item key": `robot_key: bot
robot_name: Bot
levels:
  - key: l1
    name: One
    items:
      - key: a
        title: A
      - key: a
        title: A again
`,
		"duplicate level key": `robot_key: bot
robot_name: Bot
levels:
  - key: l1
    name: One
    items:
      - key: a
        title: A
  - key: l1
    name: One again
    items:
      - key: b
        title: B
`,
		"unknown difficulty": `robot_key: bot
robot_name: Bot
levels:
  - key: l1
    name: One
    items:
      - key: a
        title: A
        difficulty: impossible
`,
		"missing robot name": `robot_key: bot
levels: []
`,
		"empty item key": `robot_key: bot
robot_name: Bot
levels:
  - key: l1
    name: One
    items:
      - key: ""
        title: A
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeChecklist(t, dir, "bot.yaml", content)
			err := NewLoader(dir).Load()
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrChecklistMalformed)
		})
	}
}

func TestLoaderRejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeChecklist(t, dir, "bot.yaml", "robot_key: [unclosed")

	err := NewLoader(dir).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
}

func TestLoaderMalformedFileFailsWholeLoad(t *testing.T) {
	dir := t.TempDir()
	writeChecklist(t, dir, "otto.yaml", validYAML)
	writeChecklist(t, dir, "bad.yaml", "robot_key: \nlevels: []\n")

	loader := NewLoader(dir)
	require.Error(t, loader.Load())

	// Nothing is served after a failed load.
	_, err := loader.Get(context.Background(), "otto")
	assert.ErrorIs(t, err, shared.ErrRobotNotFound)
}

func TestLoaderIgnoresNonYAMLFiles(t *testing.T) {
	dir := t.TempDir()
	writeChecklist(t, dir, "otto.yaml", validYAML)
	writeChecklist(t, dir, "README.md", "# not a checklist")

	loader := NewLoader(dir)
	require.NoError(t, loader.Load())

	robots, err := loader.Robots(context.Background())
	require.NoError(t, err)
	assert.Len(t, robots, 1)
}
