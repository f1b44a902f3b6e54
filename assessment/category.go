// Package assessment defines the RoleFit questionnaire vocabulary: the primary
// categories a candidate assessment is scoped by, the second-tier competency
// labels attached to generated questions, and the Question shape itself.
package assessment

// Category is one of the six primary assessment categories.
type Category string

const (
	CategoryBackground  Category = "Background and experience"
	CategoryTechnical   Category = "Technical or role-specific skills"
	CategorySoftSkills  Category = "Soft skills and ways of working"
	CategoryCulture     Category = "Culture and values alignment"
	CategoryMotivation  Category = "Motivation and career goals"
	CategoryPractical   Category = "Practical details and deal breakers"
)

// categories is the closed set in display order.
var categories = []Category{
	CategoryBackground,
	CategoryTechnical,
	CategorySoftSkills,
	CategoryCulture,
	CategoryMotivation,
	CategoryPractical,
}

// Categories returns the primary categories in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// IsValid reports whether c belongs to the closed category set.
func (c Category) IsValid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// String returns the display label.
func (c Category) String() string {
	return string(c)
}

// ParseCategory converts a label to a Category, returning empty for unknown labels.
func ParseCategory(s string) Category {
	c := Category(s)
	if c.IsValid() {
		return c
	}
	return ""
}

// competencies is the second-tier vocabulary offered to the generator.
// Generated questions are not validated against it.
var competencies = []string{
	"Problem solving and decision making",
	"Learning ability and adaptability",
	"Strategic thinking and business impact",
	"Data literacy and analytical thinking",
	"Product thinking (value vs effort, impact)",
	"Quality, process and attention to detail",
	"Attention to security and privacy",
	"Process improvement and optimisation",
	"Cross-cultural communication",
	"Negotiation and influence",
	"Conflict resolution",
	"Change management",
	"Planning, organisation and execution",
	"Collaboration in cross-functional squads",
	"Stakeholder and client management",
	"Remote or distributed work readiness",
	"Documentation and knowledge sharing",
	"Initiative and proactiveness",
	"Resilience and stress management",
	"Ethics, compliance and professionalism",
	"Ownership and accountability",
	"Risk awareness and mitigation",
	"Environmental and social responsibility mindset",
	"Customer focus and service mindset",
	"Commercial awareness and business acumen",
	"Innovation and creative thinking",
	"Leadership and people management",
	"Coaching and mentoring",
	"Ownership of end-to-end outcomes",
}

// Competencies returns the second-tier competency vocabulary.
func Competencies() []string {
	out := make([]string, len(competencies))
	copy(out, competencies)
	return out
}
