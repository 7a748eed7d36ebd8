package classify

// Category names of the built-in taxonomy, in declaration order.
const (
	ArtificialIntelligence = "Artificial Intelligence"
	Startups               = "Startups"
	Mobile                 = "Mobile"
	Security               = "Security"
	Business               = "Business"
	Science                = "Science"
	Software               = "Software"
	Technology             = "Technology"
)

// Topic is one taxonomy row.
type Topic struct {
	Name        string
	Description string
	Keywords    []string // lowercase
}

// taxonomy is read-only after init. Order breaks score ties.
var taxonomy = []Topic{
	{
		Name:        ArtificialIntelligence,
		Description: "Machine learning, language models and applied AI.",
		Keywords: []string{
			"artificial intelligence", "machine learning", "deep learning", "neural network",
			"llm", "large language model", "chatgpt", "openai", "generative ai",
			"computer vision", "natural language processing",
		},
	},
	{
		Name:        Startups,
		Description: "Young companies, founders and venture funding.",
		Keywords: []string{
			"startup", "funding", "seed round", "series a", "series b", "venture capital",
			"founder", "accelerator", "y combinator", "unicorn",
		},
	},
	{
		Name:        Mobile,
		Description: "Phones, tablets, wearables and mobile apps.",
		Keywords: []string{
			"iphone", "ipad", "android", "smartphone", "mobile app", "tablet",
			"app store", "google play", "5g", "wearable",
		},
	},
	{
		Name:        Security,
		Description: "Vulnerabilities, breaches and defensive security.",
		Keywords: []string{
			"security", "cybersecurity", "vulnerability", "breach", "ransomware", "malware",
			"phishing", "hacker", "exploit", "encryption", "zero-day",
		},
	},
	{
		Name:        Business,
		Description: "Markets, earnings and corporate deals.",
		Keywords: []string{
			"revenue", "earnings", "acquisition", "merger", "ipo", "stock",
			"market share", "investor", "profit", "quarterly", "layoffs",
		},
	},
	{
		Name:        Science,
		Description: "Research, space and the natural sciences.",
		Keywords: []string{
			"research", "scientist", "study", "nasa", "physics", "biology",
			"climate", "quantum", "discovery", "telescope",
		},
	},
	{
		Name:        Software,
		Description: "Programming, open source and developer tooling.",
		Keywords: []string{
			"software", "open source", "programming", "developer", "github", "framework",
			"sdk", "database", "linux", "compiler",
		},
	},
	{
		Name:        Technology,
		Description: "General technology and consumer hardware.",
		Keywords: []string{
			"technology", "tech", "gadget", "device", "computer", "internet",
			"cloud", "digital", "innovation", "hardware",
		},
	},
}

// Taxonomy returns a copy of the built-in taxonomy in declaration order.
func Taxonomy() []Topic {
	out := make([]Topic, len(taxonomy))
	for i, t := range taxonomy {
		t.Keywords = append([]string(nil), t.Keywords...)
		out[i] = t
	}
	return out
}
