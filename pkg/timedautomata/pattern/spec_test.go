package pattern

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const specsYAML = `
automata:
  - name: double-tap
    emit: double
    steps:
      - match: key == 'a'
        capture: first
      - match: key == 'a'
        within: 200ms
  - name: any
    steps:
      - match: ""
`

func TestParseSpecs(t *testing.T) {
	specs, err := ParseSpecs([]byte(specsYAML))
	require.NoError(t, err)
	require.Len(t, specs, 2)

	assert.Equal(t, "double-tap", specs[0].Name)
	assert.Equal(t, "double", specs[0].Emit)
	require.Len(t, specs[0].Steps, 2)
	assert.Equal(t, "first", specs[0].Steps[0].Capture)
	assert.Equal(t, 200*time.Millisecond, specs[0].Steps[1].Within)
	assert.Equal(t, "", specs[1].Steps[0].Match)
}

func TestLoadSpecs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "automata.yaml")
	require.NoError(t, os.WriteFile(path, []byte(specsYAML), 0o600))

	specs, err := LoadSpecs(path)
	require.NoError(t, err)
	assert.Len(t, specs, 2)

	_, err = LoadSpecs(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseSpecs_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		errMsgs []string
	}{
		{
			name:    "malformed yaml",
			yaml:    "automata: [",
			errMsgs: []string{"parse specs"},
		},
		{
			name: "duplicate names",
			yaml: `
automata:
  - name: x
    steps: [{match: "key == 'a'"}]
  - name: x
    steps: [{match: "key == 'b'"}]
`,
			errMsgs: []string{`duplicate name "x"`},
		},
		{
			name: "every problem reported",
			yaml: `
automata:
  - steps:
      - match: "key == 'a"
        within: 10ms
      - match: "key == 'b'"
        within: -5ms
`,
			errMsgs: []string{"name: required", "steps[0].within", "steps[0].match", "steps[1].within"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSpecs([]byte(tt.yaml))
			require.Error(t, err)
			for _, msg := range tt.errMsgs {
				assert.Contains(t, err.Error(), msg)
			}
		})
	}
}

func TestSpec_Validate(t *testing.T) {
	valid := Spec{Name: "ok", Steps: []Step{{Match: "key == 'a'"}, {Match: "key == 'b'", Within: time.Second}}}
	assert.NoError(t, valid.Validate())

	noSteps := Spec{Name: "empty"}
	err := noSteps.Validate()
	assert.ErrorIs(t, err, ErrInvalidSpec)
	assert.Contains(t, err.Error(), "at least one step")

	dupCapture := Spec{Name: "dup", Steps: []Step{{Capture: "x"}, {Capture: "x"}}}
	assert.ErrorContains(t, dupCapture.Validate(), `duplicate key "x"`)
}
