package schema

import "time"

// Patterns shared by the flaw schema and the entity layer
const (
	CWEPattern       = `^CWE-[0-9]+.*$|^None$`
	CVEPattern       = `^CVE-[0-9]+-[0-9]+$|^None$`
	SubsystemPattern = `^(sensing|actuation|communication|cognition|UI|power).*$`
	DatePattern      = `^[0-9]{4}-[0-9]{2}-[0-9]{2}( \([0-9]{2}:[0-9]{2}\))?$`
	URLPattern       = `^https?://\S+$`

	// DateLayout is the layout of generated dates, e.g. "2019-10-03 (21:19)"
	DateLayout = "2006-01-02 (15:04)"

	// MaxTitleLength is the longest title accepted by the tracker
	MaxTitleLength = 65
)

// Flaw types
var FlawTypes = []string{"weakness", "vulnerability", "exposure"}

var (
	Phases = []string{
		"runtime-operation", "testing", "development", "design", "deployment", "unknown",
	}
	Specificities = []string{
		"robot-specific", "subject-specific", "ROS-specific", "ROS 2-specific", "general", "N/A",
	}
	ArchitecturalLocations = []string{
		"application-specific", "platform code", "ROS-specific", "third-party", "N/A",
	}
	DetectionMethods = []string{
		"injected", "runtime detection", "testing", "testing static", "testing dynamic",
		"visual inspection", "N/A",
	}
	ReporterRelationships = []string{
		"vendor", "contributor", "security researcher", "automatic", "other", "N/A",
	}
	Reproducibilities = []string{
		"always", "often", "sometimes", "rarely", "never", "N/A",
	}
)

// now is swapped in tests to make generated dates deterministic
var now = time.Now

func today() any {
	return now().Format(DateLayout)
}

func emptyList() DefaultFunc {
	return Value([]any{})
}

// RVD is the schema every flaw document must satisfy
var RVD = New(
	Required("id", KindInteger, WithRange(0, 1<<53), WithDefault(Value(0))),
	Required("title", KindString, WithMaxLength(MaxTitleLength), WithDefault(Value("Unnamed flaw"))),
	Required("type", KindString, WithAllowed(FlawTypes...), WithDefault(Value("vulnerability"))),
	Required("description", KindString, AllowEmpty(), WithDefault(Value(""))),
	Required("cwe", KindString, WithPattern(CWEPattern), WithDefault(Value("None"))),
	Required("cve", KindString, WithPattern(CVEPattern), WithDefault(Value("None"))),
	Required("keywords", KindList, WithDefault(emptyList())),
	Required("system", KindString, AllowEmpty(), WithDefault(Value(""))),
	Optional("vendor", KindString, Value(nil), AllowNull(), AllowEmpty()),
	Group("severity", true,
		Required("rvss-score", KindScore, WithRange(0, 10), WithDefault(Value(0.0))),
		Required("rvss-vector", KindString, AllowEmpty(), WithDefault(Value(""))),
		Required("severity-description", KindString, AllowEmpty(), WithDefault(Value(""))),
		Required("cvss-score", KindScore, WithRange(0, 10), WithDefault(Value(0.0))),
		Required("cvss-vector", KindString, AllowEmpty(), WithDefault(Value(""))),
	),
	Optional("links", KindList, emptyList()),
	Group("flaw", true,
		Required("phase", KindString, WithAllowed(Phases...), WithDefault(Value("unknown"))),
		Required("specificity", KindString, WithAllowed(Specificities...), WithDefault(Value("N/A"))),
		Required("architectural-location", KindString, WithAllowed(ArchitecturalLocations...), WithDefault(Value("N/A"))),
		Optional("application", KindString, Value("N/A"), AllowEmpty()),
		Optional("subsystem", KindString, Value(""), AllowEmpty(), WithPattern(SubsystemPattern)),
		Optional("package", KindString, Value("N/A"), AllowEmpty()),
		Optional("languages", KindString, Value("None"), AllowEmpty()),
		Optional("date-detected", KindString, today, AllowEmpty(), WithPattern(DatePattern)),
		Optional("detected-by", KindString, Value(""), AllowEmpty()),
		Optional("detected-by-method", KindString, Value("N/A"), AllowEmpty(), WithAllowed(DetectionMethods...)),
		Optional("date-reported", KindString, today, AllowEmpty(), WithPattern(DatePattern)),
		Optional("reported-by", KindString, Value(""), AllowEmpty()),
		Optional("reported-by-relationship", KindString, Value("N/A"), AllowEmpty(), WithAllowed(ReporterRelationships...)),
		Optional("issue", KindString, Value(""), AllowEmpty(), WithPattern(URLPattern)),
		Optional("reproducibility", KindString, Value("N/A"), AllowEmpty(), WithAllowed(Reproducibilities...)),
		Optional("trace", KindString, Value(""), AllowEmpty()),
		Optional("reproduction", KindString, Value(""), AllowEmpty()),
		Optional("reproduction-image", KindString, Value(""), AllowEmpty()),
	),
	Group("exploitation", false,
		Optional("description", KindString, Value(""), AllowEmpty()),
		Optional("exploitation-image", KindString, Value(""), AllowEmpty()),
		Optional("exploitation-vector", KindString, Value(""), AllowEmpty()),
	),
	Group("mitigation", false,
		Optional("description", KindString, Value(""), AllowEmpty()),
		Optional("pull-request", KindString, Value(""), AllowEmpty(), WithPattern(URLPattern)),
		Optional("date-mitigation", KindString, nil, AllowEmpty(), WithPattern(DatePattern)),
	),
)
