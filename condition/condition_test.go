package condition

import (
	"testing"

	"github.com/mohitkumar/procflow/model"
	"github.com/stretchr/testify/require"
)

func TestEval(t *testing.T) {
	env := Env{
		Status: model.COMPLETED,
		Source: map[string]any{"score": 0.9, "label": "ok"},
		Context: map[string]any{
			"campaign": map[string]any{"budget": 250.0, "active": true},
			"region":   "emea",
			"retries":  2,
		},
	}
	cases := map[string]bool{
		`status == "COMPLETED"`:                             true,
		`source.status != 'FAILED'`:                         true,
		`source.score >= 0.8`:                               true,
		`source.label == "ok" && context.campaign.active`:   true,
		`context.campaign.budget > 300`:                     false,
		`context.campaign.budget > 300 || region == "emea"`: true,
		`$.campaign.budget <= 250`:                          true,
		`$.missing == null`:                                 true,
		`not (retries < 1)`:                                 true,
		`!context.campaign.active`:                          false,
		`unknown`:                                           false,
		`retries == 2 and region != "apac"`:                 true,
		`region < "fr"`:                                     true,
		`-1 < retries`:                                      true,
		`true`:                                              true,
	}
	for expr, want := range cases {
		t.Run(expr, func(t *testing.T) {
			e, err := Parse(expr)
			require.NoError(t, err)
			got, err := e.Eval(env)
			require.NoError(t, err)
			require.Equal(t, want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, expr := range []string{
		``,
		`status ==`,
		`(status == "COMPLETED"`,
		`status = "x"`,
		`"unterminated`,
		`a b`,
		`context.`,
		`os.exit(1)`,
	} {
		_, err := Parse(expr)
		require.Error(t, err, expr)
	}
}

func TestEvalErrors(t *testing.T) {
	e := MustParse(`context.region > 3`)
	_, err := e.Eval(Env{Context: map[string]any{"region": "emea"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "context.region > 3")
}

func TestMustParsePanics(t *testing.T) {
	require.Panics(t, func() { MustParse("&&") })
	require.Equal(t, "status == 'x'", MustParse("status == 'x'").String())
}
