package attendance

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func validInput() SubmitInput {
	return SubmitInput{
		LeaderName: "Ana",
		BadgeID:    "4821",
		Sector:     "Cabide",
		Tier:       "Menor que 120%",
	}
}

func problemsOf(t *testing.T, err error) []string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	return verr.Problems
}

func TestPolicyValidateAcceptsCompleteInput(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate(validInput()))
}

func TestPolicyValidateBadge(t *testing.T) {
	cases := []struct {
		name  string
		badge string
		want  string
	}{
		{"empty", "  ", msgBadgeRequired},
		{"too short", "12", "pelo menos 4"},
		{"letters", "48a1", msgBadgeDigits},
		{"signed", "-4821", msgBadgeDigits},
		{"too long", "12345678901", "no máximo 10"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			in.BadgeID = tc.badge
			problems := problemsOf(t, DefaultPolicy().Validate(in))
			require.NotEmpty(t, problems)
			require.True(t, containsSubstring(problems, tc.want), "problems %v lack %q", problems, tc.want)
		})
	}
}

func TestPolicyValidateHonoursConfiguredMinimum(t *testing.T) {
	policy := DefaultPolicy()
	policy.BadgeMinLength = 3
	in := validInput()
	in.BadgeID = "123"
	require.NoError(t, policy.Validate(in))

	policy.BadgeMinLength = 4
	require.Error(t, policy.Validate(in))
}

func TestPolicyValidateOtherRequiresText(t *testing.T) {
	in := validInput()
	in.Sector = SectorOther
	in.OtherSector = "   "
	problems := problemsOf(t, DefaultPolicy().Validate(in))
	require.Equal(t, []string{msgOtherRequired}, problems)

	in.OtherSector = "Expedição"
	require.NoError(t, DefaultPolicy().Validate(in))
	require.Equal(t, "Expedição", in.ResolvedSector())
}

func TestPolicyValidateAccumulatesEveryProblem(t *testing.T) {
	problems := problemsOf(t, DefaultPolicy().Validate(SubmitInput{BadgeID: "1x"}))
	require.Contains(t, problems, msgLeaderRequired)
	require.Contains(t, problems, msgBadgeDigits)
	require.Contains(t, problems, msgSectorRequired)
	require.Contains(t, problems, msgTierRequired)
}

func TestPolicyValidateRejectsUnknownTier(t *testing.T) {
	in := validInput()
	in.Tier = "200%"
	problems := problemsOf(t, DefaultPolicy().Validate(in))
	require.Len(t, problems, 1)
	require.True(t, strings.HasPrefix(problems[0], "atingimento inválido"))
}

func containsSubstring(values []string, sub string) bool {
	for _, v := range values {
		if strings.Contains(v, sub) {
			return true
		}
	}
	return false
}
