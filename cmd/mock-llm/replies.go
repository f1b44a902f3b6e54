package main

import (
	"encoding/json"
	"fmt"
)

type mockQuestion struct {
	Text                   string            `json:"text"`
	PrimaryCategory        string            `json:"primaryCategory"`
	SecondTierCompetencies []string          `json:"secondTierCompetencies"`
	Options                []string          `json:"options"`
	WhatItMeasures         string            `json:"whatItMeasures"`
	MaxAnswerTime          int               `json:"maxAnswerTime"`
	ScoringGuide           map[string]string `json:"scoringGuide"`
}

var questionBank = []mockQuestion{
	{
		Text:                   "A production service starts timing out after a deploy. What do you do first?",
		PrimaryCategory:        "Technical or role-specific skills",
		SecondTierCompetencies: []string{"Problem solving and decision making", "Quality, process and attention to detail"},
		Options:                []string{"Roll back the deploy", "Read the error logs", "Page the service owner", "Compare metrics before and after"},
		WhatItMeasures:         "Incident triage under pressure",
	},
	{
		Text:                   "Which of these describe how you prefer to receive feedback?",
		PrimaryCategory:        "Motivation and career goals",
		SecondTierCompetencies: []string{"Learning ability and adaptability"},
		Options:                []string{"Written, after the fact", "In a one-on-one", "Immediately, in the moment", "Aggregated in reviews"},
		WhatItMeasures:         "Receptiveness to feedback",
	},
	{
		Text:                   "Two teammates disagree on an API design and ask you to decide. How do you handle it?",
		PrimaryCategory:        "Soft skills and ways of working",
		SecondTierCompetencies: []string{"Conflict resolution", "Cross-cultural communication"},
		Options:                []string{"Pick the simpler design", "Ask each to write up trade-offs", "Escalate to the tech lead", "Prototype both"},
		WhatItMeasures:         "Mediation and technical judgement",
	},
	{
		Text:                   "What kind of projects have you led end to end?",
		PrimaryCategory:        "Background and experience",
		SecondTierCompetencies: []string{"Leadership and people management", "Ownership and accountability"},
		Options:                []string{"Internal tooling", "Customer-facing features", "Infrastructure migrations", "None yet"},
		WhatItMeasures:         "Ownership track record",
	},
	{
		Text:                   "A deadline moves up by a week. Which steps do you take?",
		PrimaryCategory:        "Practical details and deal breakers",
		SecondTierCompetencies: []string{"Planning, organisation and execution", "Stakeholder and client management"},
		Options:                []string{"Cut scope with the stakeholder", "Work longer hours", "Ask for more people", "Re-plan and communicate risks"},
		WhatItMeasures:         "Prioritisation under constraint",
	},
	{
		Text:                   "How do you keep your skills current?",
		PrimaryCategory:        "Motivation and career goals",
		SecondTierCompetencies: []string{"Learning ability and adaptability", "Resilience and stress management"},
		Options:                []string{"Side projects", "Courses and certifications", "Reading source code", "Conference talks"},
		WhatItMeasures:         "Learning habits",
	},
	{
		Text:                   "You inherit a codebase with no tests. What is your plan?",
		PrimaryCategory:        "Technical or role-specific skills",
		SecondTierCompetencies: []string{"Quality, process and attention to detail", "Problem solving and decision making"},
		Options:                []string{"Add tests around changes only", "Write characterization tests first", "Propose a rewrite", "Leave it as is"},
		WhatItMeasures:         "Pragmatism with legacy code",
	},
	{
		Text:                   "Which environments have you worked in?",
		PrimaryCategory:        "Culture and values alignment",
		SecondTierCompetencies: []string{"Collaboration in cross-functional squads", "Remote or distributed work readiness"},
		Options:                []string{"Fully remote", "Hybrid", "On-site", "Distributed across time zones"},
		WhatItMeasures:         "Collaboration context",
	},
	{
		Text:                   "A customer reports a bug you cannot reproduce. What do you try?",
		PrimaryCategory:        "Practical details and deal breakers",
		SecondTierCompetencies: []string{"Customer focus and service mindset", "Problem solving and decision making"},
		Options:                []string{"Ask for a screen recording", "Check their environment details", "Add logging and wait", "Close as cannot reproduce"},
		WhatItMeasures:         "Investigative persistence",
	},
	{
		Text:                   "What matters most to you in your next role?",
		PrimaryCategory:        "Motivation and career goals",
		SecondTierCompetencies: []string{"Initiative and proactiveness"},
		Options:                []string{"Technical challenge", "Growth into leadership", "Work-life balance", "Mission of the company"},
		WhatItMeasures:         "Career drivers",
	},
}

// builtinQuestion returns the bank entry for the index-th call, cycling.
func builtinQuestion(index int) string {
	q := questionBank[index%len(questionBank)]
	q.MaxAnswerTime = 90
	q.ScoringGuide = map[string]string{
		"1": "No clear approach",
		"3": "Reasonable but incomplete",
		"5": "Thorough and well reasoned",
	}
	data, _ := json.Marshal(q)
	return string(data)
}

// builtinSuggestions completes input five ways.
func builtinSuggestions(input string) string {
	if input == "" {
		input = "something else"
	}
	out := make([]string, 0, 5)
	for _, suffix := range []string{"with a small team", "under a tight deadline", "for an external client", "as a side project", "while mentoring others"} {
		out = append(out, fmt.Sprintf("%s %s", input, suffix))
	}
	data, _ := json.Marshal(out)
	return string(data)
}
