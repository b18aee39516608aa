package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsariola/stepseq/wavfile"
)

const testProject = `
name: demo
tracks:
  - name: kick
    sample: kick.wav
    pattern: x...
`

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	data := make([]float32, 100)
	for i := range data {
		data[i] = 0.5
	}
	require.NoError(t, wavfile.Save(filepath.Join(dir, "kick.wav"), 44100, 1, data))
	path := filepath.Join(dir, "demo.yml")
	require.NoError(t, os.WriteFile(path, []byte(testProject), 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"play", "render", "info"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
}

func TestRender(t *testing.T) {
	path := writeProject(t)
	out := filepath.Join(t.TempDir(), "out.wav")
	stdout, err := execute(t, "render", path, "-o", out, "--seconds", "0.1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "rendered 4410 frames (1 beats triggered)")
	s, err := wavfile.Load(out)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Channels)
	assert.Equal(t, 4410, s.Frames)
	assert.InDelta(t, 0.5, s.Peak, 1e-3)
}

func TestRenderDefaultsToOnePass(t *testing.T) {
	path := writeProject(t)
	_, err := execute(t, "render", path)
	require.NoError(t, err)
	s, err := wavfile.Load(filepath.Join(filepath.Dir(path), "demo.wav"))
	require.NoError(t, err)
	assert.Equal(t, 4*5512, s.Frames)
}

func TestInfo(t *testing.T) {
	path := writeProject(t)
	stdout, err := execute(t, "info", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "demo: 1 tracks, 4 beats, 120 bpm")
	assert.Regexp(t, `0 kick\s+x\.\.\. kick\.wav`, stdout)
}

func TestInfoTemplate(t *testing.T) {
	path := writeProject(t)
	tmpl := filepath.Join(t.TempDir(), "info.tmpl")
	require.NoError(t, os.WriteFile(tmpl, []byte(`{{ .Name | upper }} {{ range .Tracks }}{{ .Name | repeat 2 }}{{ end }}`), 0644))
	stdout, err := execute(t, "info", path, "--template", tmpl)
	require.NoError(t, err)
	assert.Equal(t, "DEMO kickkick", stdout)
}

func TestUnknownBackend(t *testing.T) {
	_, err := NewBackend("nonexistent", 44100, 512)
	assert.Error(t, err)
	assert.Contains(t, BackendNames(), DefaultBackend)
}

func TestRenderRaw(t *testing.T) {
	path := writeProject(t)
	out := filepath.Join(t.TempDir(), "out.raw")
	_, err := execute(t, "render", path, "-o", out, "--seconds", "0.01", "--format", "raw32")
	require.NoError(t, err)
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, int64(441*2*4), info.Size())

	_, err = execute(t, "render", path, "--format", "mp3")
	assert.Error(t, err)
}
