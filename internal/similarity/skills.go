package similarity

import "github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/talent"

// SkillOverlap compares a candidate's folded skill set against a posting's
// required and preferred skills. Comparison is case-insensitive and duplicate
// skills on the posting count once. Percentage is
// (matched required + matched preferred) / (required + preferred), or 0 when
// the posting lists no skills.
func SkillOverlap(candidate map[string]struct{}, required, preferred []string) talent.SkillDetail {
	req := talent.SkillSet(required)
	pref := talent.SkillSet(preferred)

	matchedReq := make(map[string]struct{})
	missingReq := make(map[string]struct{})
	for s := range req {
		if _, ok := candidate[s]; ok {
			matchedReq[s] = struct{}{}
		} else {
			missingReq[s] = struct{}{}
		}
	}
	matchedPref := make(map[string]struct{})
	for s := range pref {
		if _, ok := candidate[s]; ok {
			matchedPref[s] = struct{}{}
		}
	}

	d := talent.SkillDetail{
		MatchedRequired:  talent.SortedSkills(matchedReq),
		MatchedPreferred: talent.SortedSkills(matchedPref),
		MissingRequired:  talent.SortedSkills(missingReq),
	}
	if total := len(req) + len(pref); total > 0 {
		d.Percentage = float64(len(matchedReq)+len(matchedPref)) / float64(total)
	}
	return d
}
