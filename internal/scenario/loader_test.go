package scenario

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/uiprobe/api/schemas"
)

const validScenario = `
name: manual-comment
title: Add a manual comment
start_path: /
steps:
  - action: navigate
    url: /video-player
  - id: add-comment
    action: click
    target: xpath=html/body/div/div[2]/div/main/div/div[2]/div[2]/div/div/button
    nth: 1
    dwell: 500ms
    ready_when: text=Comments
  - action: fill
    target: "#comment"
    value: hello
    timeout: 2s
  - action: wait
    duration: 1s
assertions:
  - target: text=Manual Comment Added Successfully
    timeout: 1s
    failure_reason: the manual comment did not appear
  - id: timestamp
    target: text=00:00
`

// -- Parsing Tests --

func TestParse(t *testing.T) {
	sc, err := Parse([]byte(validScenario), "inline.yaml")
	require.NoError(t, err)

	half := 500 * time.Millisecond
	want := schemas.Scenario{
		Name:      "manual-comment",
		Title:     "Add a manual comment",
		StartPath: "/",
		Source:    "inline.yaml",
		Steps: []schemas.Step{
			{Action: schemas.ActionNavigate, URL: "/video-player"},
			{
				ID:        "add-comment",
				Action:    schemas.ActionClick,
				Target:    "xpath=html/body/div/div[2]/div/main/div/div[2]/div[2]/div/div/button",
				Nth:       1,
				Dwell:     &half,
				ReadyWhen: "text=Comments",
			},
			{Action: schemas.ActionFill, Target: "#comment", Value: "hello", Timeout: 2 * time.Second},
			{Action: schemas.ActionWait, Duration: time.Second},
		},
		Assertions: []schemas.Assertion{
			{ID: "A1", Target: "text=Manual Comment Added Successfully", Timeout: time.Second, FailureReason: "the manual comment did not appear"},
			{ID: "timestamp", Target: "text=00:00"},
		},
	}
	if diff := cmp.Diff(want, sc); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr []string
	}{
		{"empty document", "", []string{"empty scenario document"}},
		{"unknown key", "name: x\nstepz: []\n", []string{"field stepz not found"}},
		{"bad duration", "name: x\nsteps:\n  - action: wait\n    duration: soon\n", []string{"failed to decode"}},
		{
			"every structural problem is reported",
			`
steps:
  - action: hover
  - action: click
  - action: fill
    target: "#x"
  - action: navigate
  - action: wait
assertions:
  - id: dup
    target: "#a"
  - id: dup
    target: ""
`,
			[]string{
				"scenario name is required",
				`step 1 (hover): unknown action "hover"`,
				"step 2 (click): target is required",
				"step 3 (fill #x): value is required",
				"step 4 (navigate): url is required",
				"step 5 (wait): duration must be positive",
				"assertion dup: target is required",
				"assertion dup: duplicate assertion id",
			},
		},
		{"no assertions", "name: x\nsteps: []\n", []string{"at least one assertion"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), "bad.yaml")
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestValidate_NegativeBounds(t *testing.T) {
	neg := -time.Second
	err := Validate(schemas.Scenario{
		Name: "x",
		Steps: []schemas.Step{
			{Action: schemas.ActionClick, Target: "#a", Nth: -1, Timeout: -time.Second, Dwell: &neg},
		},
		Assertions: []schemas.Assertion{{ID: "a", Target: "#a", Timeout: -time.Second}},
	})
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 4)
}

// -- Directory Loading Tests --

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("b.yaml", "name: beta\nassertions:\n  - target: '#b'\n")
	write("a.yml", "name: alpha\nassertions:\n  - target: '#a'\n")
	write("notes.txt", "not a scenario")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	scenarios, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "alpha", scenarios[0].Name)
	assert.Equal(t, filepath.Join(dir, "a.yml"), scenarios[0].Source)
	assert.Equal(t, "beta", scenarios[1].Name)

	t.Run("duplicate names", func(t *testing.T) {
		write("c.yaml", "name: alpha\nassertions:\n  - target: '#c'\n")
		_, err := LoadDir(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `scenario "alpha" already defined`)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := LoadDir(filepath.Join(dir, "missing"))
		assert.Error(t, err)
	})
}

func TestLoadFS_ReportsAllBrokenFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"one.yaml": {Data: []byte("name: one\n")},
		"two.yaml": {Data: []byte("steps: [\n")},
		"ok.yaml":  {Data: []byte("name: ok\nassertions:\n  - target: '#ok'\n")},
	}
	_, err := LoadFS(fsys, ".")
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
}

func TestLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), "one.yaml")
	require.NoError(t, os.WriteFile(file, []byte(validScenario), 0o644))

	sc, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "manual-comment", sc.Name)
	assert.Equal(t, file, sc.Source)

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

// -- Selection Tests --

func TestFindAndMerge(t *testing.T) {
	base := []schemas.Scenario{{Name: "navigation", Title: "built-in"}, {Name: "project-search"}}
	overrides := []schemas.Scenario{{Name: "navigation", Title: "local"}, {Name: "checkout"}}

	merged := Merge(base, overrides)
	names := make([]string, len(merged))
	for i, sc := range merged {
		names[i] = sc.Name
	}
	assert.Equal(t, []string{"checkout", "navigation", "project-search"}, names)

	found, err := Find(merged, "project-search", "navigation")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "project-search", found[0].Name)
	assert.Equal(t, "local", found[1].Title, "overrides replace built-ins of the same name")

	_, err = Find(merged, "navigation", "nope", "missing")
	require.Error(t, err)
	assert.Equal(t, "unknown scenario(s): nope, missing", err.Error())
}

// -- Fuzz Tests --

// FuzzParse checks that arbitrary documents, and documents produced from
// arbitrary scenarios, never panic the loader and that accepted scenarios
// are valid.
func FuzzParse(f *testing.F) {
	f.Add([]byte(validScenario))
	f.Add([]byte("name: x\nassertions: [{target: '#a'}]\n"))

	f.Fuzz(func(t *testing.T, data []byte) {
		if sc, err := Parse(data, "fuzz.yaml"); err == nil {
			require.NoError(t, Validate(sc))
		}

		var generated schemas.Scenario
		if err := fuzz.NewConsumer(data).GenerateStruct(&generated); err != nil {
			return
		}
		doc, err := yaml.Marshal(generated)
		if err != nil {
			return
		}
		sc, err := Parse(doc, "generated.yaml")
		if err != nil {
			return
		}
		require.NoError(t, Validate(sc))
		if diff := cmp.Diff(generated.Steps, sc.Steps, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("steps changed in round trip (-generated +parsed):\n%s", diff)
		}
	})
}
