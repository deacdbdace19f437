package endpoint

// Named region groups. A configuration may name a group instead of
// listing provider regions explicitly; groups are expanded once at
// manager construction.
var (
	regionsDefault = []string{"us-east-1"}

	regionsUS = []string{"us-east-1", "us-east-2", "us-west-1", "us-west-2"}

	regionsEU = []string{"eu-west-1", "eu-west-2", "eu-west-3", "eu-central-1"}

	regionsAsia = []string{
		"ap-south-1", "ap-northeast-2", "ap-southeast-1",
		"ap-southeast-2", "ap-northeast-1", "sa-east-1",
	}
)

// regionGroups maps group names to their literal region lists.
var regionGroups = map[string][]string{
	"default": regionsDefault,
	"us":      regionsUS,
	"eu":      regionsEU,
	"asia":    regionsAsia,
	"all":     concat(regionsUS, regionsEU, regionsAsia),
}

// RegionGroup returns the region list for a named group.
func RegionGroup(name string) ([]string, bool) {
	regions, ok := regionGroups[name]
	if !ok {
		return nil, false
	}
	out := make([]string, len(regions))
	copy(out, regions)
	return out, true
}

// ExpandRegions expands group names in the given list into literal
// region identifiers, passing explicit regions through unchanged and
// dropping duplicates. An empty input expands to the default group.
func ExpandRegions(names []string) []string {
	if len(names) == 0 {
		names = []string{"default"}
	}

	seen := make(map[string]bool, len(names))
	var out []string
	for _, name := range names {
		expanded, ok := RegionGroup(name)
		if !ok {
			expanded = []string{name}
		}
		for _, region := range expanded {
			if seen[region] {
				continue
			}
			seen[region] = true
			out = append(out, region)
		}
	}
	return out
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
