package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/uiprobe/api/schemas"
	"github.com/xkilldash9x/uiprobe/internal/scenario"
)

func TestLoad(t *testing.T) {
	scenarios, err := Load()
	require.NoError(t, err)

	names := make([]string, len(scenarios))
	for i, sc := range scenarios {
		names[i] = sc.Name
	}
	assert.Equal(t, []string{
		"ai-analysis-errors",
		"comment-validation",
		"manual-comment",
		"navigation",
		"project-search",
		"settings-persistence",
	}, names)
}

func TestFailureReasons(t *testing.T) {
	scenarios, err := Load()
	require.NoError(t, err)

	tests := []struct {
		scenario string
		target   string
		reason   string
	}{
		{
			"manual-comment",
			"text=Manual Comment Added Successfully",
			"The manual comment did not appear instantly in the Results Sidebar with the correct timestamp as expected.",
		},
		{
			"project-search",
			"text=Search results for NonexistentProjectXYZ",
			"The global search did not reliably return relevant project results matching search queries. " +
				"Expected to find search results for 'NonexistentProjectXYZ', but none were found, " +
				"indicating a failure in search functionality.",
		},
		{
			"settings-persistence",
			"text=Profile update successful",
			"Modifications to profile, notification preferences, appearance, and security settings were not saved or correctly applied as expected.",
		},
		{
			"comment-validation",
			"text=Comment exceeds maximum allowed length",
			"Input validation for manual comments did not block submission or show appropriate validation error " +
				"for empty input, max length, or special characters as specified in the test plan.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.scenario, func(t *testing.T) {
			found, err := scenario.Find(scenarios, tt.scenario)
			require.NoError(t, err)
			sc := found[0]
			require.Len(t, sc.Assertions, 1)
			assert.Equal(t, tt.target, sc.Assertions[0].Target)
			assert.Equal(t, tt.reason, sc.Assertions[0].FailureReason)
		})
	}
}

func TestNavigationChecksEveryLabel(t *testing.T) {
	scenarios, err := Load()
	require.NoError(t, err)
	found, err := scenario.Find(scenarios, "navigation")
	require.NoError(t, err)

	var targets []string
	for _, a := range found[0].Assertions {
		targets = append(targets, a.Target)
		assert.Empty(t, a.FailureReason, "labels rely on generated reasons")
	}
	assert.Equal(t, []string{
		"text=4New Project",
		"text=Filtered by Active Projects",
		"text=Sorted by Name",
		"text=NB's Team",
		"text=0 Projects",
	}, targets)
}

func TestRecoveryIsScenarioData(t *testing.T) {
	scenarios, err := Load()
	require.NoError(t, err)

	for _, sc := range scenarios {
		for _, step := range sc.Steps {
			if step.Action == schemas.ActionNavigate {
				assert.NotEmpty(t, step.URL, "%s: navigate step without url", sc.Name)
			}
		}
	}
}
